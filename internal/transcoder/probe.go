package transcoder

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// probeWAV checks that path holds a readable WAV file with the expected
// sample rate and channel count. A transcode that exits zero but writes
// the wrong format would otherwise fail much later, inside the
// transcription capability.
func probeWAV(path string, sampleRate, channels int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return fmt.Errorf("%s is not a valid wav file", path)
	}
	if int(dec.SampleRate) != sampleRate {
		return fmt.Errorf("unexpected sample rate %d, want %d", dec.SampleRate, sampleRate)
	}
	if int(dec.NumChans) != channels {
		return fmt.Errorf("unexpected channel count %d, want %d", dec.NumChans, channels)
	}
	return nil
}
