package docs

import "errors"

var (
	// ErrContentDirNotFound indicates a section's content directory does not exist.
	ErrContentDirNotFound = errors.New("content directory not found")

	// ErrWalkFailed indicates filesystem traversal of a content directory failed.
	ErrWalkFailed = errors.New("content directory walk failed")

	// ErrFileReadFailed indicates reading a discovered content file failed.
	ErrFileReadFailed = errors.New("content file read failed")

	// ErrFrontmatter indicates a file's metadata header could not be parsed.
	ErrFrontmatter = errors.New("unreadable front matter")

	// ErrDuplicateRoute indicates two files in one section resolve to the same route.
	ErrDuplicateRoute = errors.New("duplicate route in section")
)
