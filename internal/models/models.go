// Package models holds the data types shared across the site client,
// scrapers, download engine and CLI.
package models

import "time"

// Tag is a single gallery tag with its listing URL.
type Tag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ImgInList is one entry of a gallery's image list as embedded in the
// `var imglist = [...]` script tag. URL lacks the `https:` scheme prefix.
type ImgInList struct {
	Caption string `json:"caption"`
	URL     string `json:"url"`
}

// Comic is a gallery identified by an integer id, with an ordered image list.
// IsDownloaded is transient: it is never written to the manifest. The comic
// command fills it in from the store's record for the comic (true only when
// that record is Completed); the download directory is not checked.
type Comic struct {
	ID           int64       `json:"id"`
	Title        string      `json:"title"`
	Cover        string      `json:"cover"`
	Category     string      `json:"category"`
	ImageCount   int64       `json:"imageCount"`
	Tags         []Tag       `json:"tags"`
	Intro        string      `json:"intro"`
	IsDownloaded *bool       `json:"isDownloaded,omitempty"`
	ImgList      []ImgInList `json:"imgList"`
}

// DownloadFormat is the target image encoding, driving both transcoding
// choice and the extension used for the already-downloaded skip check.
type DownloadFormat string

const (
	FormatJpeg     DownloadFormat = "jpeg"
	FormatPng      DownloadFormat = "png"
	FormatWebp     DownloadFormat = "webp"
	FormatOriginal DownloadFormat = "original"
)

// Extension returns the file extension for the format, and false for
// FormatOriginal since the extension depends on the source image.
func (f DownloadFormat) Extension() (string, bool) {
	switch f {
	case FormatJpeg:
		return "jpg", true
	case FormatPng:
		return "png", true
	case FormatWebp:
		return "webp", true
	default:
		return "", false
	}
}

// DownloadTaskState is the state of a ComicDownloadTask or ImageDownloadTask.
// Initial state is Pending; Completed, Cancelled and Failed are terminal.
type DownloadTaskState string

const (
	StatePending     DownloadTaskState = "Pending"
	StateDownloading DownloadTaskState = "Downloading"
	StatePaused      DownloadTaskState = "Paused"
	StateCancelled   DownloadTaskState = "Cancelled"
	StateCompleted   DownloadTaskState = "Completed"
	StateFailed      DownloadTaskState = "Failed"
)

// IsTerminal reports whether the state accepts no further transitions
// without a fresh Submit.
func (s DownloadTaskState) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// DatabaseEntry is the store record persisted when a task completes or
// fails (a cancelled task writes none), letting `list` and restart-time
// reconciliation avoid re-walking the filesystem. Grounded on the teacher's models.DatabaseEntry.
type DatabaseEntry struct {
	ComicID      int64             `json:"comicId"`
	Title        string            `json:"title"`
	Status       DownloadTaskState `json:"status"`
	Folder       string            `json:"folder"`
	ErrorDetails string            `json:"errorDetails,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	// ManifestHash is a blake3 digest over the sorted filenames and sizes of
	// a completed comic's image files, recorded after a successful download
	// as a post-hoc integrity record (detects on-disk corruption/tampering
	// between runs). It is not a resume/skip gate: SPEC_FULL.md keeps
	// downloads all-or-nothing, so this field is write-once at Completed.
	ManifestHash string `json:"manifestHash,omitempty"`
}

// UserProfile is the logged-in user's identity, scraped from the profile page.
type UserProfile struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Shelf is a user-side favorites grouping.
type Shelf struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ComicInSearch is a single hit in a search result listing.
type ComicInSearch struct {
	ID             int64  `json:"id"`
	TitleHTML      string `json:"titleHtml"`
	Title          string `json:"title"`
	Cover          string `json:"cover"`
	AdditionalInfo string `json:"additionalInfo"`
	IsDownloaded   bool   `json:"isDownloaded"`
}

// SearchResult is the parsed result of a keyword or tag search page.
type SearchResult struct {
	Comics        []ComicInSearch `json:"comics"`
	CurrentPage   int64           `json:"currentPage"`
	TotalPage     int64           `json:"totalPage"`
	IsSearchByTag bool            `json:"isSearchByTag"`
}

// ComicInFavorite is a single favorited comic.
type ComicInFavorite struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Cover        string `json:"cover"`
	FavoriteTime string `json:"favoriteTime"`
	Shelf        Shelf  `json:"shelf"`
	IsDownloaded bool   `json:"isDownloaded"`
}

// GetFavoriteResult is the parsed result of a favorites-shelf page.
type GetFavoriteResult struct {
	Comics      []ComicInFavorite `json:"comics"`
	CurrentPage int64             `json:"currentPage"`
	TotalPage   int64             `json:"totalPage"`
	Shelf       Shelf             `json:"shelf"`
	Shelves     []Shelf           `json:"shelves"`
}

// Config is the on-disk TOML configuration, layered with viper-bound flags
// and environment variables in cmd/wnacg-dl/cmd/root.go.
type Config struct {
	DownloadDir      string `toml:"download_dir"`
	ExportDir        string `toml:"export_dir"`
	Cookie           string `toml:"cookie"`
	ComicConcurrency int    `toml:"comic_concurrency"`
	ImgConcurrency   int    `toml:"img_concurrency"`
	DownloadFormat   string `toml:"download_format"`
	EnableFileLogger bool   `toml:"enable_file_logger"`
	StoreDir         string `toml:"store_dir"`
	IndexDir         string `toml:"index_dir"`
	LogLevel         string `toml:"log_level"`
	DaemonAddr       string `toml:"daemon_addr"`
}
