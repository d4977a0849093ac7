package mapview

// ZoomRule names the branch of SelectZoom that produced a zoom.
type ZoomRule string

const (
	RuleClassOverride ZoomRule = "class"
	RuleImportance    ZoomRule = "importance"
	RuleFallback      ZoomRule = "fallback"
)

// ZoomDecision is the outcome of SelectZoom.
type ZoomDecision struct {
	Zoom int
	Rule ZoomRule
	// Threshold is the importance bound that matched (RuleImportance only).
	Threshold float64
}

// Street-level features always open at full detail.
var streetLevelClasses = map[string]bool{
	"tourism": true,
	"road":    true,
	"amenity": true,
}

// Ordered from most to least prominent; first match wins.
var importanceSteps = []struct {
	above float64
	zoom  int
}{
	{0.85, 5},
	{0.80, 8},
	{0.70, 14},
	{0.60, 15},
	{0.50, 16},
	{0.40, 17},
}

// SelectZoom picks the zoom for a forward-geocode hit: the more prominent
// the place, the further out the view.
func SelectZoom(class string, importance float64) ZoomDecision {
	if streetLevelClasses[class] {
		return ZoomDecision{Zoom: 18, Rule: RuleClassOverride}
	}
	for _, step := range importanceSteps {
		if importance > step.above {
			return ZoomDecision{Zoom: step.zoom, Rule: RuleImportance, Threshold: step.above}
		}
	}
	return ZoomDecision{Zoom: 18, Rule: RuleFallback}
}
