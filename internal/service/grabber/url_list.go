package grabber

import (
	"strings"

	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/utils"
)

// FlattenURLs expands arguments into a list of unique URLs.
// Arguments ending in .txt are read as files holding one URL per line.
func FlattenURLs(args []string) ([]string, error) {
	var (
		// Track processed URLs.
		processedSet = make(map[string]struct{}, len(args))
		// Track processed text files.
		processedTextFiles = make(map[string]struct{})
		// Store the final list of URLs.
		processedURLs = make([]string, 0, len(args))
	)

	add := func(url string) {
		url = strings.TrimSpace(url)
		if url == "" {
			return
		}

		if _, ok := processedSet[url]; ok {
			return
		}

		processedSet[url] = struct{}{}
		processedURLs = append(processedURLs, url)
	}

	for _, arg := range args {
		if !strings.HasSuffix(strings.ToLower(arg), constants.ExtensionTXT) {
			add(arg)

			continue
		}

		// Skip already processed text files.
		if _, ok := processedTextFiles[arg]; ok {
			continue
		}

		lines, err := utils.ReadUniqueLinesFromFile(arg)
		if err != nil {
			return nil, err
		}

		for _, line := range lines {
			add(line)
		}

		processedTextFiles[arg] = struct{}{}
	}

	return processedURLs, nil
}
