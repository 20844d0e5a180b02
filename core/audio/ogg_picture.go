package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"schls/logger"
)

var ffmetadataEscaper = strings.NewReplacer(
	`\`, `\\`,
	"=", `\=`,
	";", `\;`,
	"#", `\#`,
	"\n", "\\\n",
)

// WriteOggPicture stores block as the METADATA_BLOCK_PICTURE comment of the
// Ogg file at path. The value goes through an ffmetadata file rather than the
// command line because cover art easily exceeds argument length limits.
func (p *FFmpegProcessor) WriteOggPicture(ctx context.Context, path, block string) error {
	dir := filepath.Dir(path)

	meta, err := os.CreateTemp(dir, ".cover-*.ffmeta")
	if err != nil {
		return &IOError{Op: "create metadata file", Path: dir, Err: err}
	}
	defer os.Remove(meta.Name())

	content := ";FFMETADATA1\nMETADATA_BLOCK_PICTURE=" + ffmetadataEscaper.Replace(block) + "\n"
	if _, err := meta.WriteString(content); err != nil {
		meta.Close()
		return &IOError{Op: "write metadata file", Path: meta.Name(), Err: err}
	}
	if err := meta.Close(); err != nil {
		return &IOError{Op: "write metadata file", Path: meta.Name(), Err: err}
	}

	ext := filepath.Ext(path)
	tmpOut := strings.TrimSuffix(path, ext) + ".cover" + ext

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-i", meta.Name(),
		"-map", "0",
		"-map_metadata", "1",
		"-map_metadata:s:a", "1",
		"-c", "copy",
		tmpOut,
	}

	cmd := p.command(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(tmpOut)
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ExternalProcessError{Op: "write ogg picture", ExitCode: code, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	if err := os.Rename(tmpOut, path); err != nil {
		os.Remove(tmpOut)
		return &IOError{Op: "replace", Path: path, Err: err}
	}

	logger.Debug("ogg picture written", logger.String("path", path), logger.Int("blockLen", len(block)))
	return nil
}
