// Package prompt builds the chat messages used to ask an LLM about a
// finding.
//
// Each [PromptType] selects a persona and an instruction. Callers pass the
// finding in [BuildOptions] and send the returned messages to an Ollama
// client:
//
//	messages, err := prompt.Build(prompt.TypeExplain, prompt.BuildOptions{Finding: f})
//	if err != nil {
//	    return err
//	}
//	stream, err := client.ChatStream(ctx, messages, nil)
//
// Findings should be redacted before they are handed to Build; the package
// copies their details into the prompt verbatim.
package prompt
