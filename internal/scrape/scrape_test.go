package scrape

import (
	"errors"
	"testing"
)

func TestParseUserProfile(t *testing.T) {
	t.Run("logged in", func(t *testing.T) {
		body := `<div><a href="/users.html" class="top_utab ui"><img src="/userpic/123.jpg" /> testuser </a></div>`
		profile, err := ParseUserProfile(body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if profile.Username != "testuser" {
			t.Errorf("Username = %q, want %q", profile.Username, "testuser")
		}
		if profile.Avatar != "https://www.wnacg01.cc/userpic/123.jpg" {
			t.Errorf("Avatar = %q", profile.Avatar)
		}
	})

	t.Run("logged out", func(t *testing.T) {
		body := `<div class="title title_c">請先登錄</div>`
		_, err := ParseUserProfile(body)
		if !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("err = %v, want ErrUnauthenticated", err)
		}
	})
}

const searchFixture = `
<li class="li gallary_item"><a href="/photos-index-aid-1001.html" title="Comic One (raw)">Comic <em>One</em></a><img src="//img.host/one.jpg"/><div class="info_col">100張圖片， 創建於2025-01-01 00:00:00</div></li>
<li class="li gallary_item"><a href="/photos-index-aid-1002.html" title="Comic Two">Comic Two</a><img src="//img.host/two.jpg"/><div class="info_col">50張圖片， 創建於2025-01-02 00:00:00</div></li>
<span class="thispage">2</span>
<b>1,234</b>
`

func TestParseSearchResultByKeyword(t *testing.T) {
	result, err := ParseSearchResult(searchFixture, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Comics) != 2 {
		t.Fatalf("len(Comics) = %d, want 2", len(result.Comics))
	}
	if result.Comics[0].ID != 1001 || result.Comics[0].Title != "Comic One" {
		t.Errorf("Comics[0] = %+v", result.Comics[0])
	}
	if result.Comics[1].Cover != "https://img.host/two.jpg" {
		t.Errorf("Comics[1].Cover = %q", result.Comics[1].Cover)
	}
	if result.CurrentPage != 2 {
		t.Errorf("CurrentPage = %d, want 2", result.CurrentPage)
	}
	// ceil(1234/24) = 52
	if result.TotalPage != 52 {
		t.Errorf("TotalPage = %d, want 52", result.TotalPage)
	}
}

const tagSearchFixture = `
<li class="li gallary_item"><a href="/photos-index-aid-2001.html" title="Tagged Comic">Tagged Comic</a><img src="//img.host/tag.jpg"/><div class="info_col">10張圖片， 創建於2025-02-01 00:00:00</div></li>
<span class="thispage">1</span>
<div class="f_left paginator"><a href="#">1</a><a href="#">2</a><a href="#">5</a></div>
`

func TestParseSearchResultByTag(t *testing.T) {
	result, err := ParseSearchResult(tagSearchFixture, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalPage != 5 {
		t.Errorf("TotalPage = %d, want 5", result.TotalPage)
	}
	if !result.IsSearchByTag {
		t.Errorf("IsSearchByTag = false, want true")
	}
}

const galleryFixture = `
<head><link rel="canonical" href="/feed-index-aid-456.html" /></head>
<div id="bodywrap"><h2>My Comic Title</h2>
<div class="asTBcell uwthumb"><img src="/data/1/cover.jpg" /></div>
<label class="asTBcell uwconn">分類：同人誌</label>
<label class="asTBcell uwconn">頁數：24P</label>
<a class="tagshow" href="/albums-index-tag-1.html">tag1</a>
<a class="tagshow" href="/albums-index-tag-2.html">tag2</a>
<p class="asTBcell uwconn">This is the <b>intro</b>.</p>
</div>
`

func TestParseGalleryMetadata(t *testing.T) {
	comic, err := ParseGalleryMetadata(galleryFixture)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comic.ID != 456 {
		t.Errorf("ID = %d, want 456", comic.ID)
	}
	if comic.Title != "My Comic Title" {
		t.Errorf("Title = %q", comic.Title)
	}
	if comic.Cover != "https://data/1/cover.jpg" {
		t.Errorf("Cover = %q", comic.Cover)
	}
	if comic.Category != "同人誌" {
		t.Errorf("Category = %q", comic.Category)
	}
	if comic.ImageCount != 24 {
		t.Errorf("ImageCount = %d, want 24", comic.ImageCount)
	}
	if len(comic.Tags) != 2 || comic.Tags[0].Name != "tag1" {
		t.Errorf("Tags = %+v", comic.Tags)
	}
	if comic.Intro != "This is the <b>intro</b>." {
		t.Errorf("Intro = %q", comic.Intro)
	}
}

func TestExtractImgList(t *testing.T) {
	body := "var imglist = [{url:\"//img5.wnimg.ru/data/1/01.jpg\",caption:\"01\"},{url:fast_img_host+\"/data/1/02.jpg\",caption:\"02\"}];\n"
	imgs, err := ExtractImgList(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(imgs) != 2 {
		t.Fatalf("len(imgs) = %d, want 2", len(imgs))
	}
	if imgs[0].URL != "//img5.wnimg.ru/data/1/01.jpg" || imgs[0].Caption != "01" {
		t.Errorf("imgs[0] = %+v", imgs[0])
	}
	if imgs[1].URL != "/data/1/02.jpg" {
		t.Errorf("imgs[1].URL = %q, want the fast_img_host+ prefix stripped", imgs[1].URL)
	}
}

func TestExtractImgListMissingLine(t *testing.T) {
	if _, err := ExtractImgList("<html>no list here</html>"); err == nil {
		t.Fatal("expected error for missing imglist line")
	}
}

const favoritesFixture = `
<a class="l_title" href="/photos-index-aid-789.html">Fav Comic</a>
<div class="asTBcell thumb"><img src="//img.host/fav.jpg"/></div>
<span class="l_catg_time">創建時間：2025-01-04 16:04:34</span>
<a class="l_catg" href="/users-users_fav-c-5.html">MyShelf</a>
<span class="thispage">1</span>
<a class="cur" href="/users-users_fav-c-5.html">MyShelf</a>
<a class="nav_list" href="/users-users_fav-c-5.html">MyShelf</a>
<a class="nav_list" href="/users-users_fav-c-9.html">OtherShelf</a>
<div class="f_left paginator"><a href="#">1</a><a href="#">3</a></div>
`

func TestParseFavorites(t *testing.T) {
	result, err := ParseFavorites(favoritesFixture)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Comics) != 1 {
		t.Fatalf("len(Comics) = %d, want 1", len(result.Comics))
	}
	c := result.Comics[0]
	if c.ID != 789 || c.Title != "Fav Comic" {
		t.Errorf("Comics[0] = %+v", c)
	}
	if c.FavoriteTime != "2025-01-04 16:04:34" {
		t.Errorf("FavoriteTime = %q", c.FavoriteTime)
	}
	if c.Shelf.ID != 5 {
		t.Errorf("Shelf.ID = %d, want 5", c.Shelf.ID)
	}
	if result.Shelf.ID != 5 || result.Shelf.Name != "MyShelf" {
		t.Errorf("result.Shelf = %+v", result.Shelf)
	}
	if len(result.Shelves) != 2 {
		t.Errorf("len(Shelves) = %d, want 2", len(result.Shelves))
	}
	if result.TotalPage != 3 {
		t.Errorf("TotalPage = %d, want 3", result.TotalPage)
	}
}
