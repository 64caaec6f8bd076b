package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/scribelabs/scribe-core/internal/config"
)

type ffmpegTranscoder struct {
	cmd []string
	cfg config.TranscoderConfig
}

// NewFFmpeg builds a Transcoder that shells out to the configured ffmpeg
// command. The command string may carry extra leading arguments
// (e.g. "nice -n 10 ffmpeg").
func NewFFmpeg(cfg config.TranscoderConfig) (Transcoder, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse transcoder command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("transcoder command is empty")
	}
	return &ffmpegTranscoder{cmd: args, cfg: cfg}, nil
}

func (t *ffmpegTranscoder) Normalize(ctx context.Context, inputPath string) (string, error) {
	ext := filepath.Ext(inputPath)
	outPath := strings.TrimSuffix(inputPath, ext) + "_16k.wav"

	args := append([]string{}, t.cmd[1:]...)
	args = append(args,
		"-y",
		"-i", inputPath,
		"-ar", strconv.Itoa(t.cfg.SampleRate),
		"-ac", strconv.Itoa(t.cfg.Channels),
		"-f", "wav",
		outPath,
	)

	command := exec.CommandContext(ctx, t.cmd[0], args...)
	var stderr bytes.Buffer
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("transcode command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", fmt.Errorf("transcode produced no output: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(outPath)
		return "", fmt.Errorf("transcode produced empty output %s", outPath)
	}

	if err := probeWAV(outPath, t.cfg.SampleRate, t.cfg.Channels); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("transcode output rejected: %w", err)
	}

	return outPath, nil
}
