package task

import (
	"strings"

	"github.com/phrazzld/filequeue/internal/domain"
)

// ResolveChannels builds the ordered list of channels a worker watches from
// a single channel name and a comma-separated list. Names are trimmed,
// empty entries dropped and duplicates removed keeping the first
// occurrence. With nothing given it returns the default channel.
func ResolveChannels(single, multi string) []string {
	var channels []string
	seen := make(map[string]bool)
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		channels = append(channels, name)
	}

	add(single)
	for _, name := range strings.Split(multi, ",") {
		add(name)
	}

	if len(channels) == 0 {
		return []string{domain.DefaultChannel}
	}
	return channels
}
