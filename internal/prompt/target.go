package prompt

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jayteealao/distpush/internal/config"
)

// TargetFields are the questions asked for a deploy target, grouped as
// they are shown.
var TargetFields = [][]Field{
	{
		{Key: "name", Title: "Project name", Type: TypeText},
		{Key: "script", Title: "Build command", Description: "Run in this directory before packing", Type: TypeText, Default: "npm run build"},
		{Key: "distPath", Title: "Build output directory", Type: TypePath, Required: true, Default: "dist"},
	},
	{
		{Key: "host", Title: "Host", Type: TypeHost, Required: true},
		{Key: "port", Title: "SSH port", Type: TypePort, Default: strconv.Itoa(config.DefaultPort)},
		{Key: "username", Title: "SSH user", Type: TypeText, Required: true},
		{Key: "webDir", Title: "Remote directory", Description: "dist.zip is unpacked here", Type: TypePath, Required: true},
	},
	{
		{Key: "privateKey", Title: "Private key", Description: "Path to a key file; leave empty to use a password", Type: TypePath, Default: "~/.ssh/id_ed25519"},
		{Key: "password", Title: "Password", Description: "Stored in plain text; prefer DISTPUSH_PASSWORD", Type: TypeSecret},
	},
}

// CollectTarget asks for every field in TargetFields and returns the
// answers keyed by config key. Empty answers fall back to the field default.
func CollectTarget() (map[string]string, error) {
	answers := make(map[string]*string)
	var groups []*huh.Group

	for _, fields := range TargetFields {
		inputs := make([]huh.Field, 0, len(fields))
		for _, f := range fields {
			value := new(string)
			answers[f.Key] = value
			inputs = append(inputs, newInput(f, value))
		}
		groups = append(groups, huh.NewGroup(inputs...))
	}

	if err := huh.NewForm(groups...).Run(); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(answers))
	for _, fields := range TargetFields {
		for _, f := range fields {
			v := strings.TrimSpace(*answers[f.Key])
			if v == "" {
				v = f.Default
			}
			values[f.Key] = v
		}
	}
	return values, nil
}

func newInput(f Field, value *string) *huh.Input {
	input := huh.NewInput().
		Title(f.Title).
		Description(f.Description).
		Value(value).
		Placeholder(GetPlaceholder(f.Type, f.Default))

	if f.Type == TypeSecret {
		input.EchoMode(huh.EchoModePassword)
	}

	validator := ValidateByType(f.Type)
	if f.Required && f.Default == "" {
		validator = validateRequired(validator)
	}
	if validator != nil {
		input.Validate(validator)
	}
	return input
}

// Settings converts answers into values for a config file: empty answers
// are dropped and the port becomes a number.
func Settings(values map[string]string) map[string]interface{} {
	settings := make(map[string]interface{}, len(values))
	for k, v := range values {
		if v == "" {
			continue
		}
		if k == "port" {
			if port, err := strconv.Atoi(v); err == nil {
				settings[k] = port
				continue
			}
		}
		settings[k] = v
	}
	return settings
}

// ConfirmAction prompts the user to confirm an action with yes/no.
// Returns true if the user confirmed, false otherwise.
func ConfirmAction(title, description string) (bool, error) {
	var confirmed bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Value(&confirmed).
				Affirmative("Yes").
				Negative("No"),
		),
	)

	if err := form.Run(); err != nil {
		return false, err
	}

	return confirmed, nil
}
