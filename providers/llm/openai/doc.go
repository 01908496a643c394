// Package openai implements [llm.StreamClient] for the OpenAI API.
//
// Text chat streams over the /chat/completions SSE endpoint. When the
// requested model is an image-generation model the client diverts to the
// images endpoints instead (/images/generations, or /images/edits when the
// request carries reference-image attachments) and delivers the result as a
// single synthetic chunk containing a markdown image link.
//
// The streaming endpoint does not report token usage here, so usage is
// estimated from character counts (~0.3 tokens per character) and flagged
// as estimated; callers price it through the pricing table as usual.
package openai
