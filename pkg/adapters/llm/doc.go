// Package llm provides completion clients for the llm node.
//
// The factory creates LLM clients based on provider configuration.
// Currently supports:
//   - Anthropic Claude
package llm
