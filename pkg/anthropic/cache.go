package anthropic

// BuildCachedSystemBlocks returns the static instructions followed by a
// context block carrying a cache breakpoint, so repeated calls that share
// the same operator profile hit the prompt cache. An empty context yields a
// single cached instruction block.
func BuildCachedSystemBlocks(instructions, context string) []SystemBlock {
	if context == "" {
		return []SystemBlock{{Text: instructions, CacheControl: &CacheControl{TTL: "1h"}}}
	}
	return []SystemBlock{
		{Text: instructions},
		{Text: context, CacheControl: &CacheControl{TTL: "1h"}},
	}
}
