package rules

// Rule is one line of static domain guidance. Children are rendered at
// increasing indent below their parent.
type Rule struct {
	Category string `yaml:"category" json:"category"`
	Text     string `yaml:"text" json:"text"`
	Children []Rule `yaml:"children,omitempty" json:"children,omitempty"`
}
