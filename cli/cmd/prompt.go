package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/justapithecus/snapfeed/types"
)

// modePrompt is shown when no mode is configured anywhere.
const modePrompt = "HTTP or MQTT? "

// promptMode asks the operator for a transport mode and reads one line.
func promptMode(in io.Reader, out io.Writer) (string, error) {
	if in == nil {
		return "", errors.New("no mode configured and no input to prompt on")
	}
	fmt.Fprint(out, modePrompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read mode: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// resolveMode picks the first non-empty of the flag/env value and the
// config value, falling back to the operator prompt. The result is parsed
// once; an unrecognized value is a configuration error.
func resolveMode(flagValue, configValue string, prompt func() (string, error)) (types.TransportMode, error) {
	raw := flagValue
	if raw == "" {
		raw = configValue
	}
	if raw == "" {
		answer, err := prompt()
		if err != nil {
			return "", err
		}
		raw = answer
	}
	return types.ParseTransportMode(raw)
}
