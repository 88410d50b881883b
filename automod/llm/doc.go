// Text completion providers (ollama, openai, anthropic, gemini) used for the legacy single-decision moderation path.
package llm
