// Package transcode re-encodes downloaded videos into a broadly
// compatible H.264/AAC profile with loudness-normalised audio. The
// whole step is best effort: on any failure the original file is
// left untouched and the error is reported to the caller, who is
// expected to log and discard it.
package transcode

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/floostack/transcoder/ffmpeg"

	"tikdrop/pkg/logger"
)

var log = logger.Get("Transcode")

// loudnormFilter targets broadcast-style loudness: -16 LUFS
// integrated, range 11, true peak -1.5 dBTP.
const loudnormFilter = "loudnorm=I=-16:LRA=11:TP=-1.5"

type Config struct {
	FfmpegBinPath  string `yaml:"ffmpeg_bin" env:"FFMPEG_BIN" env-default:"ffmpeg"`
	FfprobeBinPath string `yaml:"ffprobe_bin" env:"FFPROBE_BIN" env-default:"ffprobe"`
}

type Normalizer struct {
	config Config
}

func New(config Config) *Normalizer {
	if config.FfmpegBinPath == "" {
		config.FfmpegBinPath = "ffmpeg"
	}
	if config.FfprobeBinPath == "" {
		config.FfprobeBinPath = "ffprobe"
	}

	return &Normalizer{config: config}
}

// Normalize re-encodes the video at the given path in place. The
// encode writes to a temporary sibling file which atomically replaces
// the original only once it is known to be complete and non-empty;
// any failure removes the temporary file and leaves the original as
// it was.
func (normalizer *Normalizer) Normalize(path string) error {
	bitrate, hasBitrate := normalizer.probeBitrate(path)
	if hasBitrate {
		log.Emit(logger.DEBUG, "Probed source bitrate %d for %s\n", bitrate, filepath.Base(path))
	} else {
		log.Emit(logger.DEBUG, "No source bitrate found for %s, using constant quality\n", filepath.Base(path))
	}

	tempPath := filepath.Join(filepath.Dir(path), "temp_"+filepath.Base(path))
	args := encodeArguments(path, tempPath, bitrate, hasBitrate)

	if output, err := exec.Command(normalizer.config.FfmpegBinPath, args...).CombinedOutput(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("encode failed: %w (%s)", err, lastOutputLine(output))
	}

	info, err := os.Stat(tempPath)
	if err != nil || info.Size() == 0 {
		os.Remove(tempPath)
		return errors.New("encoder produced no output")
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace original file: %w", err)
	}

	return nil
}

// probeBitrate inspects the input's first video stream for its bit
// rate, falling back to the container-level rate when the stream does
// not declare one. The boolean is false when neither is available.
func (normalizer *Normalizer) probeBitrate(path string) (int64, bool) {
	cfg := ffmpeg.Config{FfprobeBinPath: normalizer.config.FfprobeBinPath}
	metadata, err := ffmpeg.New(&cfg).Input(path).GetMetadata()
	if err != nil {
		log.Emit(logger.DEBUG, "ffprobe failed for %s: %s\n", filepath.Base(path), err.Error())
		return 0, false
	}

	for _, stream := range metadata.GetStreams() {
		if stream.GetCodecType() != "video" {
			continue
		}

		if rate, err := strconv.ParseInt(stream.GetBitRate(), 10, 64); err == nil && rate > 0 {
			return rate, true
		}

		break
	}

	if rate, err := strconv.ParseInt(metadata.GetFormat().GetBitRate(), 10, 64); err == nil && rate > 0 {
		return rate, true
	}

	return 0, false
}

// encodeArguments builds the ffmpeg invocation: H.264 main profile
// with 4:2:0 chroma for player compatibility, AAC audio run through
// the loudness normalisation filter, and the video plus optional
// audio streams mapped so that a silent source does not fail the
// encode. When the source bitrate is known the output is capped to it
// to avoid inflating the file.
func encodeArguments(inputPath string, outputPath string, bitrate int64, hasBitrate bool) []string {
	args := []string{
		"-y", "-i", inputPath,
		"-map", "0:v?", "-map", "0:a?",
		"-c:v", "libx264",
		"-preset", "fast",
		"-profile:v", "main",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-af", loudnormFilter,
	}

	if hasBitrate {
		rate := strconv.FormatInt(bitrate, 10)
		buffer := strconv.FormatInt(bitrate*2, 10)
		args = append(args, "-b:v", rate, "-maxrate", rate, "-bufsize", buffer)
	} else {
		args = append(args, "-crf", "23")
	}

	return append(args, outputPath)
}

// lastOutputLine picks the final non-empty line of ffmpeg's combined
// output, which is where it reports the actual failure.
func lastOutputLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return "no encoder output"
	}

	return last
}
