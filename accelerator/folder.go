package accelerator

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/docker/go-units"
)

// folderPattern selects the uploaded files of a folder: every file with an extension.
// Hidden files and everything under hidden directories are left out.
const folderPattern = "**/*.*"

var folderNameRegexp = regexp.MustCompile(`^\w+$`)

// UploadedFile is one file of a folder upload.
type UploadedFile struct {
	LocalPath  string
	RemotePath string
	Size       int64
	Object     json.RawMessage
}

// UploadFolder uploads the files of dir into the project as <folderName>/<relative path>.
// Files are uploaded one after the other; the first failure stops the folder upload.
func (u *Uploader) UploadFolder(ctx context.Context, projectSlug, dir, folderName string) ([]UploadedFile, error) {
	if !folderNameRegexp.MatchString(folderName) {
		return nil, fmt.Errorf("invalid folder name (%s): only letters, digits and underscores are allowed", folderName)
	}

	files, total, err := collectFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		u.logger.Warnf("No files found in %s", dir)
		return nil, nil
	}

	u.logger.Infof("Uploading %d files (%s) to %s/%s", len(files), units.HumanSizeWithPrecision(float64(total), 3), projectSlug, folderName)

	progress := NewLogProgress(total, u.logger)
	startTime := time.Now()

	var uploaded []UploadedFile
	for _, file := range files {
		file.RemotePath = path.Join(folderName, file.RemotePath)

		object, err := u.UploadFile(ctx, projectSlug, file.LocalPath, file.RemotePath, progress)
		if err != nil {
			return uploaded, err
		}

		file.Object = object
		uploaded = append(uploaded, file)
	}

	u.logger.Donef("Uploaded %s in %s", dir, time.Since(startTime).Round(time.Second))

	return uploaded, nil
}

// collectFiles returns the regular files of dir matching folderPattern, with RemotePath
// relative to dir, and their total size.
func collectFiles(dir string) ([]UploadedFile, int64, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, 0, err
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("%s is not a directory, only folders can be uploaded", dir)
	}

	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, folderPattern)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(matches)

	var files []UploadedFile
	var total int64
	for _, match := range matches {
		if isHidden(match) {
			continue
		}

		info, err := fs.Stat(fsys, match)
		if err != nil {
			return nil, 0, err
		}
		if !info.Mode().IsRegular() {
			continue
		}

		files = append(files, UploadedFile{
			LocalPath:  filepath.Join(dir, filepath.FromSlash(match)),
			RemotePath: match,
			Size:       info.Size(),
		})
		total += info.Size()
	}

	return files, total, nil
}

// isHidden reports whether any segment of the slash separated path starts with a dot.
func isHidden(pth string) bool {
	for _, segment := range strings.Split(pth, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}
