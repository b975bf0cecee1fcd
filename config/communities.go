package config

import (
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// CommunitySettings is what the engine needs to know about one community.
type CommunitySettings struct {
	QueueRoom     string   `yaml:"queueRoom"`
	MatchCategory string   `yaml:"matchCategory"`
	Hosts         []string `yaml:"hosts"`
	Moderators    []string `yaml:"moderators"`
}

// Validate lists what keeps the engine from operating in the community.
func (s CommunitySettings) Validate() []string {
	var reasons []string
	if s.QueueRoom == "" {
		reasons = append(reasons, "no queue room is configured")
	}
	if len(s.Hosts) == 0 && len(s.Moderators) == 0 {
		reasons = append(reasons, "nobody can host matches")
	}
	if len(s.Moderators) == 0 {
		reasons = append(reasons, "nobody can moderate")
	}
	return reasons
}

// CanHost reports whether participant holds the hosting capability.
// Moderators can always host.
func (s CommunitySettings) CanHost(participant string) bool {
	return slices.Contains(s.Hosts, participant) || s.CanModerate(participant)
}

func (s CommunitySettings) CanModerate(participant string) bool {
	return slices.Contains(s.Moderators, participant)
}

// Communities maps community id to its settings.
type Communities map[string]CommunitySettings

// LoadCommunities reads the settings file. A missing file yields no communities.
func LoadCommunities(path string) (Communities, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Communities{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return ParseCommunities(data)
}

// ParseCommunities decodes a YAML document keyed by community id.
func ParseCommunities(data []byte) (Communities, error) {
	c := Communities{}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "decode communities")
	}
	return c, nil
}

// QueueRoom returns the community's queue room.
func (c Communities) QueueRoom(community string) (string, bool) {
	s, ok := c[community]
	if !ok || s.QueueRoom == "" {
		return "", false
	}
	return s.QueueRoom, true
}

// Validate lists every problem, prefixed by community id, in id order.
func (c Communities) Validate() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []string
	for _, id := range ids {
		for _, r := range c[id].Validate() {
			out = append(out, fmt.Sprintf("%s: %s", id, r))
		}
	}
	return out
}
