package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/leofalp/conduit/internal/utils"
	"github.com/leofalp/conduit/providers/llm"
)

const (
	imageGenerationsEndpoint = "/images/generations"
	imageEditsEndpoint       = "/images/edits"
)

// streamImageGeneration handles the image-model divert: instead of chat
// SSE, a single synchronous images call is made and the result is yielded
// as one synthetic chunk containing a markdown image link. Requests with
// reference-image attachments go through /images/edits, others through
// /images/generations.
func (c *Client) streamImageGeneration(ctx context.Context, request llm.Request) *llm.ChunkStream {
	usage := llm.NewUsagePromise()
	prompt := lastUserMessage(request)

	iteratorFunc := func(yield func(llm.Chunk, error) bool) {
		defer func() {
			// Images have no completion tokens; only the prompt is priced.
			usage.Resolve(estimateUsage(len(prompt), 0))
		}()

		var (
			response *imageResponse
			err      error
		)
		if len(request.Attachments) > 0 {
			response, err = c.editImage(ctx, request.Model, prompt, request.Attachments)
		} else {
			response, err = utils.DoPostSync[imageResponse](
				ctx, c.client, c.baseURL+imageGenerationsEndpoint, c.apiKey,
				imageGenerationRequest{Model: request.Model, Prompt: prompt, N: 1},
			)
		}
		if err != nil {
			yield(llm.Chunk{}, fmt.Errorf("openai image generation: %w", err))
			return
		}

		if len(response.Data) == 0 {
			yield(llm.Chunk{}, fmt.Errorf("openai image generation returned no images"))
			return
		}

		imageURL := response.Data[0].URL
		if imageURL == "" && response.Data[0].B64JSON != "" {
			imageURL = "data:image/png;base64," + response.Data[0].B64JSON
		}

		yield(llm.Chunk{
			Text:   fmt.Sprintf("![Generated image](%s)", imageURL),
			Images: []llm.ImageRef{{URL: imageURL}},
		}, nil)
	}

	return llm.NewChunkStream(iteratorFunc, usage)
}

// editImage posts a multipart form to /images/edits with the prompt and the
// reference images. The images endpoints are the only ones that are not
// JSON-bodied, so the request is built by hand here.
func (c *Client) editImage(ctx context.Context, model, prompt string, attachments []llm.Attachment) (*imageResponse, error) {
	var buffer bytes.Buffer
	form := multipart.NewWriter(&buffer)

	if err := form.WriteField("model", model); err != nil {
		return nil, fmt.Errorf("error building form: %w", err)
	}
	if err := form.WriteField("prompt", prompt); err != nil {
		return nil, fmt.Errorf("error building form: %w", err)
	}

	for index, attachment := range attachments {
		fileName := attachment.FileName
		if fileName == "" {
			fileName = fmt.Sprintf("reference-%d.png", index)
		}
		part, err := form.CreateFormFile("image[]", fileName)
		if err != nil {
			return nil, fmt.Errorf("error building form file: %w", err)
		}
		if _, err := part.Write(attachment.Data); err != nil {
			return nil, fmt.Errorf("error writing form file: %w", err)
		}
	}

	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("error finalizing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+imageEditsEndpoint, &buffer)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpClient := c.client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer utils.CloseWithLog(res.Body)

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("non-2xx status %d: %s", res.StatusCode, utils.TruncateStringDefault(string(respBody)))
	}

	response, err := utils.LenientUnmarshal[imageResponse](string(respBody))
	if err != nil {
		return nil, fmt.Errorf("error decoding image response: %w", err)
	}

	return response, nil
}

// lastUserMessage returns the content of the most recent user message,
// which serves as the image prompt.
func lastUserMessage(request llm.Request) string {
	for i := len(request.Messages) - 1; i >= 0; i-- {
		if request.Messages[i].Role == llm.RoleUser {
			return request.Messages[i].Content
		}
	}
	return ""
}
