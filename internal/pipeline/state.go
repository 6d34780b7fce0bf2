package pipeline

import "fmt"

// State is a step of a run.
type State int

// Run states, in order. Classification, SchemaGeneration and
// MarketingGeneration are skipped unless enabled.
const (
	StateIdeaGeneration State = iota
	StateArtifactGeneration
	StateClassification
	StateSchemaGeneration
	StateMarketingGeneration
	StateNaming
	StatePublish
	StateCatalogRefresh
	StateHubGeneration
	StateHubPublish
	StateDone
)

var stateNames = [...]string{
	StateIdeaGeneration:      "idea-generation",
	StateArtifactGeneration:  "artifact-generation",
	StateClassification:      "classification",
	StateSchemaGeneration:    "schema-generation",
	StateMarketingGeneration: "marketing-generation",
	StateNaming:              "naming",
	StatePublish:             "publish",
	StateCatalogRefresh:      "catalog-refresh",
	StateHubGeneration:       "hub-generation",
	StateHubPublish:          "hub-publish",
	StateDone:                "done",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Naming selects how the tool folder slug is chosen.
type Naming string

// Naming modes.
const (
	NamingFixed     Naming = "fixed"
	NamingClassify  Naming = "classify"
	NamingTitle     Naming = "title"
	NamingTimestamp Naming = "timestamp"
)

// ParseNaming validates a naming mode.
func ParseNaming(s string) (Naming, error) {
	switch n := Naming(s); n {
	case NamingFixed, NamingClassify, NamingTitle, NamingTimestamp:
		return n, nil
	case "":
		return NamingTitle, nil
	default:
		return "", fmt.Errorf("unknown naming mode %q (fixed, classify, title, timestamp)", s)
	}
}

// HubMode selects what the hub page links to.
type HubMode string

// Hub modes.
const (
	HubCatalog HubMode = "catalog"
	HubSingle  HubMode = "single"
)

// ParseHubMode validates a hub mode.
func ParseHubMode(s string) (HubMode, error) {
	switch h := HubMode(s); h {
	case HubCatalog, HubSingle:
		return h, nil
	case "":
		return HubCatalog, nil
	default:
		return "", fmt.Errorf("unknown hub mode %q (catalog, single)", s)
	}
}
