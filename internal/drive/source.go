package drive

import (
	"fmt"
	"strings"
)

// ParseFolderID extracts the folder id from a share URL. Accepted forms are
// ".../folders/<id>" (ending at "/" or "?"), "...id=<id>" (ending at "&"),
// and a bare id.
func ParseFolderID(source string) string {
	if start := strings.Index(source, "/folders/"); start >= 0 {
		rest := source[start+len("/folders/"):]
		if end := strings.IndexAny(rest, "/?"); end >= 0 {
			return rest[:end]
		}
		return rest
	}

	if start := strings.Index(source, "id="); start >= 0 {
		rest := source[start+len("id="):]
		if end := strings.IndexByte(rest, '&'); end >= 0 {
			return rest[:end]
		}
		return rest
	}

	return source
}

// SourceFs builds the rclone fs string rooted at the shared folder.
func SourceFs(remote, source string) string {
	return fmt.Sprintf("%s,root_folder_id=%s:", remote, ParseFolderID(source))
}
