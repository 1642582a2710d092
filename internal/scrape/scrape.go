// Package scrape turns wnacg-style HTML/JS page bodies into typed records.
// Every function here is a pure function of its input string: no network
// or filesystem access, matching SPEC_FULL.md §2's "pure functions" design
// and the textual, regexp-based extraction style of
// other_examples/.../jmclient.go (pageArrRe and friends) rather than a full
// DOM parser, per spec §9's "deliberately textual... not a parser" note.
package scrape

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"wnacg-downloader/internal/apperrors"
	"wnacg-downloader/internal/models"
)

// ErrUnauthenticated and ErrParse re-export the shared error sentinels so
// callers of this package don't need to import apperrors directly.
var (
	ErrUnauthenticated = apperrors.ErrUnauthenticated
	ErrParse           = apperrors.ErrParse
)

// ParseError names the field or selector that could not be extracted.
type ParseError struct {
	Field string
	Body  string // short snippet of the body for diagnosis
}

func (e *ParseError) Error() string {
	snippet := e.Body
	if len(snippet) > 120 {
		snippet = snippet[:120] + "…"
	}
	return fmt.Sprintf("scrape: could not find %s in body: %s", e.Field, snippet)
}

// Unwrap makes a ParseError match ErrParse under errors.Is.
func (e *ParseError) Unwrap() error { return ErrParse }

func parseErr(field, body string) error { return &ParseError{Field: field, Body: body} }

var tagStripRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return strings.TrimSpace(tagStripRe.ReplaceAllString(s, ""))
}

// loggedOutMarkerRe matches the sentinel CSS class present only when the
// supplied cookie is invalid or expired.
var loggedOutMarkerRe = regexp.MustCompile(`class="title title_c"`)

var (
	profileAnchorRe = regexp.MustCompile(`(?s)<a[^>]*class="top_utab ui"[^>]*>(.*?)</a>`)
	profileAvatarRe = regexp.MustCompile(`<img[^>]*src="([^"]*)"`)
)

// ParseUserProfile scrapes the logged-in user's name and avatar from the
// profile page body. Returns ErrUnauthenticated-wrapping error when the
// logged-out marker is present.
func ParseUserProfile(body string) (models.UserProfile, error) {
	if loggedOutMarkerRe.MatchString(body) {
		return models.UserProfile{}, fmt.Errorf("%w: cookie missing or expired", ErrUnauthenticated)
	}

	m := profileAnchorRe.FindStringSubmatch(body)
	if m == nil {
		return models.UserProfile{}, parseErr("profile anchor", body)
	}
	anchorHTML := m[1]

	avatar := "https://www.wnacg01.cc/userpic/nopic.png"
	if am := profileAvatarRe.FindStringSubmatch(anchorHTML); am != nil {
		avatar = "https://www.wnacg01.cc/" + strings.TrimPrefix(am[1], "/")
	}

	username := stripTags(anchorHTML)
	if username == "" {
		return models.UserProfile{}, parseErr("username text", anchorHTML)
	}

	return models.UserProfile{Username: username, Avatar: avatar}, nil
}

const searchPageSize = 24

var (
	searchLiRe     = regexp.MustCompile(`(?s)<li class="li gallary_item">(.*?)</li>\s*`)
	searchTitleARe = regexp.MustCompile(`(?s)<a[^>]*href="/photos-index-aid-(\d+)\.html"[^>]*title="([^"]*)"[^>]*>(.*?)</a>`)
	searchImgRe    = regexp.MustCompile(`<img[^>]*src="([^"]*)"`)
	searchInfoRe   = regexp.MustCompile(`(?s)<div class="info_col"[^>]*>(.*?)</div>`)
	thisPageRe     = regexp.MustCompile(`<span class="thispage">(\d+)</span>`)
	lastAnchorRe   = regexp.MustCompile(`(?s)class="f_left paginator"(.*)`)
	anchorNumRe    = regexp.MustCompile(`<a[^>]*>(\d+)</a>`)
	totalResultRe  = regexp.MustCompile(`<b>([0-9,]+)</b>`)
)

// ParseSearchResult parses a keyword-search or tag-search result page.
// isSearchByTag selects the pagination scheme: keyword search derives total
// pages from an advertised result count (ceil/24); tag search reads the
// last paginator anchor.
func ParseSearchResult(body string, isSearchByTag bool) (models.SearchResult, error) {
	var comics []models.ComicInSearch
	for _, li := range searchLiRe.FindAllStringSubmatch(body, -1) {
		comic, err := parseComicInSearch(li[1])
		if err != nil {
			return models.SearchResult{}, err
		}
		comics = append(comics, comic)
	}

	currentPage := int64(1)
	if m := thisPageRe.FindStringSubmatch(body); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return models.SearchResult{}, parseErr("current page integer", m[1])
		}
		currentPage = n
	}
	if currentPage < 1 {
		currentPage = 1
	}

	var totalPage int64
	if isSearchByTag {
		totalPage = 1
		if m := lastAnchorRe.FindStringSubmatch(body); m != nil {
			anchors := anchorNumRe.FindAllStringSubmatch(m[1], -1)
			if len(anchors) > 0 {
				n, err := strconv.ParseInt(anchors[len(anchors)-1][1], 10, 64)
				if err != nil {
					return models.SearchResult{}, parseErr("last page anchor integer", anchors[len(anchors)-1][1])
				}
				totalPage = n
			}
		}
	} else {
		m := totalResultRe.FindStringSubmatch(body)
		if m == nil {
			return models.SearchResult{}, parseErr("total result count", body)
		}
		total, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err != nil {
			return models.SearchResult{}, parseErr("total result count integer", m[1])
		}
		totalPage = (total + searchPageSize - 1) / searchPageSize
	}
	if totalPage < currentPage {
		totalPage = currentPage
	}

	return models.SearchResult{
		Comics:        comics,
		CurrentPage:   currentPage,
		TotalPage:     totalPage,
		IsSearchByTag: isSearchByTag,
	}, nil
}

func parseComicInSearch(li string) (models.ComicInSearch, error) {
	ta := searchTitleARe.FindStringSubmatch(li)
	if ta == nil {
		return models.ComicInSearch{}, parseErr("search result title anchor", li)
	}
	id, err := strconv.ParseInt(ta[1], 10, 64)
	if err != nil {
		return models.ComicInSearch{}, parseErr("search result id integer", ta[1])
	}
	titleHTML := strings.TrimSpace(ta[2])
	title := stripTags(ta[3])

	imgm := searchImgRe.FindStringSubmatch(li)
	if imgm == nil {
		return models.ComicInSearch{}, parseErr("search result cover image", li)
	}
	cover := "https:" + imgm[1]

	infom := searchInfoRe.FindStringSubmatch(li)
	if infom == nil {
		return models.ComicInSearch{}, parseErr("search result info div", li)
	}
	additionalInfo := stripTags(infom[1])

	return models.ComicInSearch{
		ID:             id,
		TitleHTML:      titleHTML,
		Title:          title,
		Cover:          cover,
		AdditionalInfo: additionalInfo,
	}, nil
}

var (
	comicLinkRe   = regexp.MustCompile(`<link[^>]*href="/feed-index-aid-(\d+)\.html"`)
	comicTitleRe  = regexp.MustCompile(`(?s)<h2[^>]*>(.*?)</h2>`)
	comicCoverRe  = regexp.MustCompile(`(?s)<img[^>]*class="asTBcell uwthumb"[^>]*src="([^"]*)"|class="asTBcell uwthumb"[\s\S]*?<img[^>]*src="([^"]*)"`)
	comicLabelsRe = regexp.MustCompile(`(?s)<label[^>]*class="asTBcell uwconn"[^>]*>(.*?)</label>`)
	comicTagRe    = regexp.MustCompile(`(?s)<a[^>]*class="tagshow"[^>]*href="([^"]*)"[^>]*>(.*?)</a>`)
	comicIntroRe  = regexp.MustCompile(`(?s)<p[^>]*class="asTBcell uwconn"[^>]*>(.*?)</p>`)
)

// ParseGalleryMetadata parses the gallery index page (everything except the
// image list, which comes from ExtractImgList and is merged in by the
// caller).
func ParseGalleryMetadata(body string) (models.Comic, error) {
	idm := comicLinkRe.FindStringSubmatch(body)
	if idm == nil {
		return models.Comic{}, parseErr("comic id link", body)
	}
	id, err := strconv.ParseInt(idm[1], 10, 64)
	if err != nil {
		return models.Comic{}, parseErr("comic id integer", idm[1])
	}

	titlem := comicTitleRe.FindStringSubmatch(body)
	if titlem == nil {
		return models.Comic{}, parseErr("comic title heading", body)
	}
	title := stripTags(titlem[1])

	coverm := comicCoverRe.FindStringSubmatch(body)
	if coverm == nil {
		return models.Comic{}, parseErr("comic cover image", body)
	}
	coverSrc := coverm[1]
	if coverSrc == "" {
		coverSrc = coverm[2]
	}
	cover := "https://" + strings.TrimPrefix(coverSrc, "/")

	labels := comicLabelsRe.FindAllStringSubmatch(body, -1)
	if len(labels) < 2 {
		return models.Comic{}, parseErr("category/image-count labels", body)
	}
	category := strings.TrimPrefix(stripTags(labels[0][1]), "分類：")
	imageCountText := strings.TrimSuffix(strings.TrimPrefix(stripTags(labels[1][1]), "頁數："), "P")
	imageCount, err := strconv.ParseInt(imageCountText, 10, 64)
	if err != nil {
		return models.Comic{}, parseErr("image count integer", imageCountText)
	}

	var tags []models.Tag
	for _, tm := range comicTagRe.FindAllStringSubmatch(body, -1) {
		name := stripTags(tm[2])
		if name == "" {
			continue
		}
		tags = append(tags, models.Tag{Name: name, URL: "https://www.wnacg01.cc" + tm[1]})
	}

	introm := comicIntroRe.FindStringSubmatch(body)
	if introm == nil {
		return models.Comic{}, parseErr("comic intro paragraph", body)
	}

	return models.Comic{
		ID:         id,
		Title:      title,
		Cover:      cover,
		Category:   category,
		ImageCount: imageCount,
		Tags:       tags,
		Intro:      strings.TrimSpace(introm[1]),
	}, nil
}

// ExtractImgList performs the textual `var imglist = [...]` rewrite
// described in spec §4.1/§9: find the line, slice between the first `[`
// and last `]`, rewrite bare keys into quoted JSON keys, strip the
// `fast_img_host+` concatenation prefix, unescape `\"`, then JSON-decode.
// This is deliberately a small ad-hoc transform, not a general JS parser.
func ExtractImgList(body string) ([]models.ImgInList, error) {
	var line string
	for _, l := range strings.Split(body, "\n") {
		if strings.Contains(l, "var imglist = ") {
			line = l
			break
		}
	}
	if line == "" {
		return nil, parseErr("imglist line", body)
	}

	start := strings.Index(line, "[")
	end := strings.LastIndex(line, "]")
	if start < 0 || end < 0 || end < start {
		return nil, parseErr("imglist brackets", line)
	}

	jsonStr := line[start : end+1]
	jsonStr = strings.ReplaceAll(jsonStr, "url:", `"url":`)
	jsonStr = strings.ReplaceAll(jsonStr, "caption:", `"caption":`)
	jsonStr = strings.ReplaceAll(jsonStr, "fast_img_host+", "")
	jsonStr = strings.ReplaceAll(jsonStr, `\"`, `"`)

	var imgs []models.ImgInList
	if err := json.Unmarshal([]byte(jsonStr), &imgs); err != nil {
		return nil, fmt.Errorf("%w: decoding rewritten imglist json: %s", ErrParse, err)
	}
	return imgs, nil
}

var (
	favTitleARe    = regexp.MustCompile(`(?s)<a[^>]*class="l_title"[^>]*href="/photos-index-aid-(\d+)\.html"[^>]*>(.*?)</a>`)
	favCoverRe     = regexp.MustCompile(`(?s)class="asTBcell thumb"[\s\S]*?<img[^>]*src="([^"]*)"`)
	favTimeRe      = regexp.MustCompile(`(?s)<span[^>]*class="l_catg_time"[^>]*>(.*?)</span>`)
	favShelfARe    = regexp.MustCompile(`(?s)<a[^>]*class="l_catg"[^>]*href="/users-users_fav-c-(\d+)\.html"[^>]*>(.*?)</a>`)
	favCurShelfRe  = regexp.MustCompile(`(?s)<a[^>]*class="cur"[^>]*href="/users-users_fav-c-(\d+)\.html"[^>]*>(.*?)</a>`)
	favShelfListRe = regexp.MustCompile(`(?s)<a[^>]*class="nav_list"[^>]*href="/users-users_fav-c-(\d+)\.html"[^>]*>(.*?)</a>`)
)

// ParseFavorites parses a favorites-shelf listing page. Pagination follows
// the same last-anchor scheme as tag search.
func ParseFavorites(body string) (models.GetFavoriteResult, error) {
	var comics []models.ComicInFavorite
	// Split on asTB blocks manually since entries are not uniformly
	// terminated in the source markup; each comic block is delimited by
	// its title anchor instead.
	blocks := splitFavoriteBlocks(body)
	for _, block := range blocks {
		comic, err := parseComicInFavorite(block)
		if err != nil {
			return models.GetFavoriteResult{}, err
		}
		comics = append(comics, comic)
	}

	currentPage := int64(1)
	if m := thisPageRe.FindStringSubmatch(body); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return models.GetFavoriteResult{}, parseErr("current page integer", m[1])
		}
		currentPage = n
	}
	if currentPage < 1 {
		currentPage = 1
	}

	totalPage := int64(1)
	if m := lastAnchorRe.FindStringSubmatch(body); m != nil {
		anchors := anchorNumRe.FindAllStringSubmatch(m[1], -1)
		if len(anchors) > 0 {
			n, err := strconv.ParseInt(anchors[len(anchors)-1][1], 10, 64)
			if err != nil {
				return models.GetFavoriteResult{}, parseErr("last page anchor integer", anchors[len(anchors)-1][1])
			}
			totalPage = n
		}
	}
	if totalPage < currentPage {
		totalPage = currentPage
	}

	shelf := models.Shelf{}
	if m := favCurShelfRe.FindStringSubmatch(body); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return models.GetFavoriteResult{}, parseErr("current shelf id integer", m[1])
		}
		shelf = models.Shelf{ID: id, Name: stripTags(m[2])}
	} else {
		return models.GetFavoriteResult{}, parseErr("current shelf anchor", body)
	}

	var shelves []models.Shelf
	for _, sm := range favShelfListRe.FindAllStringSubmatch(body, -1) {
		id, err := strconv.ParseInt(sm[1], 10, 64)
		if err != nil {
			return models.GetFavoriteResult{}, parseErr("shelf id integer", sm[1])
		}
		shelves = append(shelves, models.Shelf{ID: id, Name: stripTags(sm[2])})
	}

	return models.GetFavoriteResult{
		Comics:      comics,
		CurrentPage: currentPage,
		TotalPage:   totalPage,
		Shelf:       shelf,
		Shelves:     shelves,
	}, nil
}

// splitFavoriteBlocks slices the body into one chunk per comic entry,
// anchored on the title link, so each chunk carries just that comic's
// cover/time/shelf markup alongside it.
func splitFavoriteBlocks(body string) []string {
	idx := favTitleARe.FindAllStringIndex(body, -1)
	if len(idx) == 0 {
		return nil
	}
	blocks := make([]string, 0, len(idx))
	for i, loc := range idx {
		end := len(body)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		blocks = append(blocks, body[loc[0]:end])
	}
	return blocks
}

func parseComicInFavorite(block string) (models.ComicInFavorite, error) {
	tm := favTitleARe.FindStringSubmatch(block)
	if tm == nil {
		return models.ComicInFavorite{}, parseErr("favorite title anchor", block)
	}
	id, err := strconv.ParseInt(tm[1], 10, 64)
	if err != nil {
		return models.ComicInFavorite{}, parseErr("favorite id integer", tm[1])
	}
	title := stripTags(tm[2])

	cover := ""
	if cm := favCoverRe.FindStringSubmatch(block); cm != nil {
		cover = "https:" + cm[1]
	}

	favTime := ""
	if fm := favTimeRe.FindStringSubmatch(block); fm != nil {
		favTime = strings.TrimPrefix(stripTags(fm[1]), "創建時間：")
	}

	shelf := models.Shelf{}
	if sm := favShelfARe.FindStringSubmatch(block); sm != nil {
		shelfID, err := strconv.ParseInt(sm[1], 10, 64)
		if err != nil {
			return models.ComicInFavorite{}, parseErr("favorite shelf id integer", sm[1])
		}
		shelf = models.Shelf{ID: shelfID, Name: stripTags(sm[2])}
	}

	return models.ComicInFavorite{
		ID:           id,
		Title:        title,
		Cover:        cover,
		FavoriteTime: favTime,
		Shelf:        shelf,
	}, nil
}
