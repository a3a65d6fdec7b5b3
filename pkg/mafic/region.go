package mafic

// Voice regions are the values found in `region[number].discord.media`
// voice endpoints. The groupings below are best effort and may not be
// complete; they let a fleet file pin a node to a whole geographical
// area instead of listing every voice region by hand.

// RegionGroups maps a geographical region name to the voice regions it
// contains.
var RegionGroups = map[string][]string{
	"east-na":        {"montreal", "us-east", "atlanta"},
	"central-na":     {"us-central"},
	"west-na":        {"oregon", "santa-clara", "seattle", "us-west"},
	"south-na":       {"us-south"},
	"south-america":  {"santiago", "buenos-aires", "brazil"},
	"south-africa":   {"southafrica"},
	"north-asia":     {"russia"},
	"east-asia":      {"japan", "hongkong"},
	"south-asia":     {"india", "singapore"},
	"west-asia":      {"dubai"},
	"north-europe":   {"finland", "st-pete", "stockholm"},
	"east-europe":    {"bucharest"},
	"central-europe": {"frankfurt", "europe"},
	"south-europe":   {"milan"},
	"west-europe":    {"madrid", "newark", "rotterdam", "london", "amsterdam"},
	"oceania":        {"sydney"},
}

// BroadGroups maps the three coarse placement groups to their region
// groups. These are very generic and should be used rarely.
var BroadGroups = map[string][]string{
	"west":    {"east-na", "west-na", "south-na", "central-na", "south-america"},
	"central": {"north-europe", "west-europe", "south-europe", "east-europe", "central-europe", "south-africa"},
	"east":    {"north-asia", "east-asia", "south-asia", "west-asia", "oceania"},
}

// ExpandRegion resolves a fleet config region entry to the voice regions
// it covers. An entry may be a voice region itself, a region group, or
// one of the broad groups; unknown entries expand to themselves.
func ExpandRegion(entry string) []string {
	if groups, ok := BroadGroups[entry]; ok {
		var regions []string
		for _, group := range groups {
			regions = append(regions, RegionGroups[group]...)
		}
		return regions
	}
	if regions, ok := RegionGroups[entry]; ok {
		return regions
	}
	return []string{entry}
}

// regionMatches reports whether a configured region entry covers the
// given voice region.
func regionMatches(entry, voiceRegion string) bool {
	for _, r := range ExpandRegion(entry) {
		if r == voiceRegion {
			return true
		}
	}
	return false
}
