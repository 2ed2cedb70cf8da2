package imagetruth

import "regexp"

// AIGeneratorPatterns match software tags written by known image generators.
// Matched case-insensitively against the joined Software/ProcessingSoftware value.
var AIGeneratorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)midjourney`),
	regexp.MustCompile(`(?i)dall-e`),
	regexp.MustCompile(`(?i)dall\.e`),
	regexp.MustCompile(`(?i)stable diffusion`),
	regexp.MustCompile(`(?i)stablediffusion`),
	regexp.MustCompile(`(?i)leonardo`),
	regexp.MustCompile(`(?i)adobe firefly`),
	regexp.MustCompile(`(?i)photoshop.*generative`),
	regexp.MustCompile(`(?i)comfyui`),
	regexp.MustCompile(`(?i)novelai`),
	regexp.MustCompile(`(?i)ideogram`),
	regexp.MustCompile(`(?i)dreamstudio`),
	regexp.MustCompile(`(?i)invokeai`),
}

// IsAIGeneratorSoftware reports whether a software tag names a known image generator.
func IsAIGeneratorSoftware(software string) bool {
	if software == "" {
		return false
	}
	for _, re := range AIGeneratorPatterns {
		if re.MatchString(software) {
			return true
		}
	}
	return false
}
