package anthropic

// BuildCachedSystemBlocks wraps a system prompt in a single block with a
// cache breakpoint, so repeated turns of one conversation reuse the cached
// prefix. An empty ttl uses the API default of five minutes.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: ttl,
			},
		},
	}
}
