package portal

import (
	"fmt"
	"strings"

	. "github.com/mvanwyk/entrada/internal/logging"
)

// Operate runs the post-login navigation and data-entry flow. Returns
// false when a navigation step could not be completed; the session stays
// alive either way so the user can retry.
func (o *Orchestrator) Operate(userID int64, page Page) bool {
	removeStaleCaptchas()

	o.prompter.Notify(userID, "🚀 Running post-login operations…")

	for _, step := range o.profile.Steps {
		if step.Verify != "" {
			if el, err := page.Element(step.Verify); err == nil {
				if text, err := el.Text(); err == nil && strings.TrimSpace(text) != "" {
					o.prompter.Notify(userID, "📋 "+strings.TrimSpace(text))
				}
			}
		}

		el, err := page.Element(step.Selector)
		if err != nil {
			L_info("portal: step element missing", "user", userID, "step", step.Name)
			o.prompter.Notify(userID, fmt.Sprintf("ℹ️ Could not complete %q — the data might have been saved earlier.", step.Name))
			return false
		}
		if err := el.Click(); err != nil {
			L_warn("portal: step click failed", "user", userID, "step", step.Name, "error", err)
			o.prompter.Notify(userID, fmt.Sprintf("ℹ️ Could not complete %q — the data might have been saved earlier.", step.Name))
			return false
		}
		o.settle(o.profile.ClickSettle)
	}

	o.reportForm(userID, page)

	return o.fillValue(userID, page)
}

// reportForm lists the user-facing fields of the current form: label,
// value and whether the field is editable.
func (o *Orchestrator) reportForm(userID int64, page Page) {
	inputs, err := page.Elements("input")
	if err != nil {
		L_warn("portal: form enumeration failed", "user", userID, "error", err)
		return
	}

	var b strings.Builder
	b.WriteString("📝 Form data:\n")
	count := 0
	for _, el := range inputs {
		id, _, err := el.Attribute("id")
		if err != nil || o.denied(id) {
			continue
		}

		value, _, _ := el.Attribute("value")
		_, readonly, _ := el.Attribute("readonly")

		status := "✏️"
		if readonly {
			status = "🔒"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", status, o.fieldLabel(page, id), value)
		count++
	}

	if count > 0 {
		o.prompter.Notify(userID, b.String())
	}
}

// fillValue asks the user for the target field's value, fills it and
// saves. A missing input field or save control means the data was
// already entered, not an error.
func (o *Orchestrator) fillValue(userID int64, page Page) bool {
	el, err := page.Element(o.profile.ValueInput)
	if err != nil {
		o.prompter.Notify(userID, "⚠️ Input field not found. Data might have been saved earlier.")
		return true
	}

	value, err := o.prompter.RequestText(userID, "💬 Please enter a value for the input field:", o.inputWait)
	if err != nil {
		L_warn("portal: value input not received", "user", userID, "error", err)
		o.prompter.Notify(userID, "⚠️ No value received, leaving the form as is.")
		return false
	}

	if value = strings.TrimSpace(value); value != "" {
		if err := el.Clear(); err != nil {
			L_debug("portal: clearing value field failed", "user", userID, "error", err)
		}
		if err := el.Input(value); err != nil {
			L_warn("portal: filling value field failed", "user", userID, "error", err)
			o.prompter.Notify(userID, "⚠️ Could not enter the value.")
			return false
		}
		o.prompter.Notify(userID, "✅ Value entered successfully!")
		o.settle(o.profile.ClickSettle)
	}

	save, err := page.Element(o.profile.SaveButton)
	if err != nil {
		o.prompter.Notify(userID, "ℹ️ Unable to find the save button. The data might have been saved earlier.")
		return true
	}
	if err := save.Click(); err != nil {
		L_warn("portal: save click failed", "user", userID, "error", err)
		o.prompter.Notify(userID, "❌ Error while saving.")
		return false
	}

	o.prompter.Notify(userID, "✅ Save button clicked successfully!")
	return true
}

func (o *Orchestrator) denied(id string) bool {
	if id == "" {
		return true
	}
	lower := strings.ToLower(id)
	for _, sub := range o.profile.FieldDenylist {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// fieldLabel resolves the visible label for a field via label[for=],
// falling back to the field id, with the site's noisy prefix trimmed.
func (o *Orchestrator) fieldLabel(page Page, id string) string {
	label := id
	els, err := page.Elements(fmt.Sprintf("//label[@for='%s']", id))
	if err == nil && len(els) > 0 {
		if text, err := els[0].Text(); err == nil && strings.TrimSpace(text) != "" {
			label = strings.TrimSpace(text)
		}
	}
	if o.profile.LabelPrefix != "" {
		label = strings.ReplaceAll(label, o.profile.LabelPrefix, "")
	}
	return label
}
