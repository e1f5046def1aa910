package prompt

// GetSystemPrompt tells the model to behave as a plain text reader.
func GetSystemPrompt() string {
	return `You read printed text from photos of product labels and parts bins.
Return only the text you can see, line by line, top to bottom, left to right.
Do not translate, explain or add formatting. Keep digits, hyphens and Japanese
characters exactly as printed. If no text is readable, return an empty string.`
}

// GetUserPrompt is the instruction sent next to the image.
func GetUserPrompt() string {
	return "Transcribe all text visible in this image. Product numbers usually look like 12-345."
}
