package portal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML string encoding ("2s", "500ms").
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoginSelectors locate the pre-login form controls.
type LoginSelectors struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CaptchaImage string `yaml:"captchaImage"`
	CaptchaInput string `yaml:"captchaInput"`
	Submit       string `yaml:"submit"`
}

// Step is one post-login navigation step: locate, click, settle.
// Verify, when set, names an element whose presence (and text) is
// reported before the click.
type Step struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
	Verify   string `yaml:"verify,omitempty"`
}

// Profile describes one target portal: where it lives and how to find
// its controls. Sites change; keeping the descriptors in a profile file
// means no rebuild when they do.
type Profile struct {
	URL string `yaml:"url"`

	Login          LoginSelectors `yaml:"login"`
	FailureMarker  string         `yaml:"failureMarker"`
	SuccessMarkers []string       `yaml:"successMarkers"`

	Steps []Step `yaml:"steps"`

	// Form extraction
	FieldDenylist []string `yaml:"fieldDenylist"`
	LabelPrefix   string   `yaml:"labelPrefix"`
	ValueInput    string   `yaml:"valueInput"`
	SaveButton    string   `yaml:"saveButton"`

	// Settle delays after page-state changes
	NavigateSettle Duration `yaml:"navigateSettle"`
	SubmitSettle   Duration `yaml:"submitSettle"`
	ClickSettle    Duration `yaml:"clickSettle"`
}

// DefaultProfile returns the built-in portal descriptors.
func DefaultProfile() *Profile {
	return &Profile{
		URL: os.Getenv("ENTRADA_URL"),
		Login: LoginSelectors{
			Username:     "/html/body/form/div[9]/div/div[2]/div/div/div[2]/div/div[2]/div/input",
			Password:     "/html/body/form/div[9]/div/div[2]/div/div/div[2]/div/div[2]/div[2]/input",
			CaptchaImage: "/html/body/form/div[9]/div/div[2]/div/div/div[2]/div/div[2]/div[3]/div/img",
			CaptchaInput: "/html/body/form/div[9]/div/div[2]/div/div/div[2]/div/div[2]/div[4]/input",
			Submit:       "/html/body/form/div[9]/div/div[2]/div/div/div[2]/div/div[2]/input",
		},
		FailureMarker: "/html/body/div[2]/h2",
		SuccessMarkers: []string{
			"/html/body/form/header/nav/div/div/div/div/div/ul/li/a/span",
			"/html/body/form/header/nav/div/div/div/div/div/ul/li/a",
		},
		Steps: []Step{
			{Name: "open data entry", Selector: "/html/body/form/div[4]/div/div/div/div/div/div/input"},
			{
				Name:     "select record",
				Selector: "/html/body/form/div[4]/div/div/div/div/div/div[2]/div[2]/div/div/div/div/ul/input",
				Verify:   "/html/body/form/div[4]/div/div/div/div/div/div/span",
			},
			{Name: "open form", Selector: "/html/body/form/header/nav/div/div/ul/li[2]/a"},
		},
		FieldDenylist: []string{
			"event", "viewstate", "scroll", "validation",
			"clientstate", "hidden", "logout", "pwchange",
		},
		LabelPrefix: "HomeContentPlaceHolder_txt",
		ValueInput:  "/html/body/form/div[4]/div/div/div/div/div/div/div[2]/div/div/div[15]/input",
		SaveButton:  "/html/body/form/div[4]/div/div/div/div/div/div/div[2]/div/div/div[19]/input",

		NavigateSettle: Duration(2 * time.Second),
		SubmitSettle:   Duration(5 * time.Second),
		ClickSettle:    Duration(2 * time.Second),
	}
}

// LoadProfile reads a profile file over the defaults. An empty path
// returns the defaults unchanged.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if p.URL == "" {
		return nil, fmt.Errorf("profile has no portal url")
	}
	return p, nil
}
