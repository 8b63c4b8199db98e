package audio

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ResolveInputDevice picks a capture device index from the caller's
// preferences. Priority order, first match wins:
//
//  1. A preferred input index naming an input-capable device.
//  2. A loopback twin of the preferred output device: an input-capable
//     device whose name contains the output device's name (case
//     insensitive) and the token "loopback".
//
// A preferred index pointing at a missing or input-less device is ignored,
// not fatal. Enumeration is re-done fresh on every call; indices are never
// trusted across resolver invocations. The second result is false when no
// preference resolved and the engine should fall back to its own heuristic.
func ResolveInputDevice(b Backend, preferredInput, preferredOutput *int, log zerolog.Logger) (int, bool) {
	devices, err := b.Devices()
	if err != nil {
		log.Warn().Err(err).Msg("Device enumeration failed during resolution")
		return 0, false
	}

	if preferredInput != nil {
		idx := *preferredInput
		if idx >= 0 && idx < len(devices) && devices[idx].HasInput() {
			log.Info().Int("device", idx).Str("name", devices[idx].Name).Msg("Using preferred input device")
			return idx, true
		}
		log.Warn().Int("device", idx).Msg("Preferred input device unusable, falling through")
	}

	if preferredOutput != nil {
		idx := *preferredOutput
		if idx >= 0 && idx < len(devices) {
			outName := strings.ToLower(devices[idx].Name)
			for _, d := range devices {
				if !d.HasInput() || !d.IsLoopback() {
					continue
				}
				if strings.Contains(strings.ToLower(d.Name), outName) {
					log.Info().Int("device", d.Index).Str("name", d.Name).
						Str("output", devices[idx].Name).Msg("Mapped output device to loopback input")
					return d.Index, true
				}
			}
			log.Warn().Int("device", idx).Str("name", devices[idx].Name).
				Msg("No loopback input found for preferred output device")
		} else {
			log.Warn().Int("device", idx).Msg("Preferred output device does not exist, falling through")
		}
	}

	return 0, false
}

// fallbackInputDevice is the engine's own heuristic when no preference
// resolved: first any loopback input, then any WASAPI-hosted input, then the
// platform default input device.
func fallbackInputDevice(b Backend, log zerolog.Logger) (int, error) {
	devices, err := b.Devices()
	if err != nil {
		return 0, fmt.Errorf("%w: enumeration failed on %s: %v", ErrDeviceNotFound, b.Name(), err)
	}

	for _, d := range devices {
		if d.HasInput() && d.IsLoopback() {
			log.Info().Int("device", d.Index).Str("name", d.Name).Msg("Using loopback input device")
			return d.Index, nil
		}
	}

	for _, d := range devices {
		if d.HasInput() && strings.Contains(strings.ToLower(d.HostAPI), "wasapi") {
			log.Info().Int("device", d.Index).Str("name", d.Name).Msg("Using WASAPI input device")
			return d.Index, nil
		}
	}

	idx, err := b.DefaultInputIndex()
	if err != nil {
		return 0, fmt.Errorf("%w: no loopback or WASAPI input and no default on %s: %v",
			ErrDeviceNotFound, b.Name(), err)
	}
	log.Info().Int("device", idx).Msg("Using platform default input device")
	return idx, nil
}
