// Package planner turns natural-language requests into ordered calendar
// action plans.
//
// The Planner interface is implemented by Client, which calls an
// OpenAI-compatible chat-completions endpoint (for example a self-hosted
// vLLM server) with a fixed system prompt and the caller's calendar
// context, and parses the JSON response into a Plan.
//
// Actions form a closed tagged union: the model output carries an "action"
// discriminator and decoding dispatches over the five known kinds. The
// executor in the agent package type-switches over the same set; there is
// no open extension point.
package planner
