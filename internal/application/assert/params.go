package assert

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

const redacted = "****"

var secretKeyMarkers = []string{"password", "passwd", "secret", "token", "passphrase"}

// EncodeParams flattens a parameter struct into a map for the result record.
// Values under secret-looking keys are masked.
func EncodeParams(params any) map[string]any {
	out := map[string]any{}
	if params == nil {
		return out
	}
	if err := mapstructure.Decode(params, &out); err != nil {
		return map[string]any{"params": "unencodable"}
	}
	for k, v := range out {
		if isSecretKey(k) && !isZero(v) {
			out[k] = redacted
		}
	}
	return out
}

// DecodeParams fills a parameter struct from loosely typed plan input.
func DecodeParams(raw map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range secretKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isZero(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	}
	return false
}
