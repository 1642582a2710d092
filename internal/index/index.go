// Package index full-text-indexes completed comics, adapted from the
// teacher's index package: same OpenOrCreateIndex/IndexItem/SearchIndex
// shape, repurposed from model files to comics.
package index

import (
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"

	"wnacg-downloader/internal/apperrors"
	"wnacg-downloader/internal/models"
)

const defaultIndexPath = "wnacg-dl.bleve"

// Item is the document shape indexed for each completed comic. All fields
// are indexed and searchable via their lowercase JSON tag (e.g.
// '+tags:romance').
type Item struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Intro    string   `json:"intro"`
	Folder   string   `json:"folder"`
}

// ItemFromComic builds an Item for a downloaded comic.
func ItemFromComic(comic models.Comic, folder string) Item {
	tags := make([]string, len(comic.Tags))
	for i, t := range comic.Tags {
		tags[i] = t.Name
	}
	return Item{
		ID:       strconv.FormatInt(comic.ID, 10),
		Title:    comic.Title,
		Category: comic.Category,
		Tags:     tags,
		Intro:    comic.Intro,
		Folder:   folder,
	}
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	idx, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.Infof("index: creating new index at %s", indexPath)
		mapping := bleve.NewIndexMapping()
		idx, err = bleve.New(indexPath, mapping)
		if err != nil {
			return nil, fmt.Errorf("%w: creating index at %s: %s", apperrors.ErrIO, indexPath, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: opening index at %s: %s", apperrors.ErrIO, indexPath, err)
	} else {
		log.Infof("index: opened existing index at %s", indexPath)
	}
	return idx, nil
}

// IndexItem adds or updates a comic in the index.
func IndexItem(idx bleve.Index, item Item) error {
	if err := idx.Index(item.ID, item); err != nil {
		return fmt.Errorf("%w: indexing item %s: %s", apperrors.ErrIO, item.ID, err)
	}
	return nil
}

// DeleteItem removes a comic from the index, e.g. after its files are
// removed from disk.
func DeleteItem(idx bleve.Index, comicID int64) error {
	if err := idx.Delete(strconv.FormatInt(comicID, 10)); err != nil {
		return fmt.Errorf("%w: deleting item %d: %s", apperrors.ErrIO, comicID, err)
	}
	return nil
}

// Search runs a free-text query across title, category, tags and intro.
func Search(idx bleve.Index, query string) (*bleve.SearchResult, error) {
	searchQuery := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequest(searchQuery)
	req.Fields = []string{"*"}
	result, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: searching index: %s", apperrors.ErrIO, err)
	}
	return result, nil
}

// DeleteIndex removes the index directory entirely. Use with caution.
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	log.Warnf("index: deleting index at %s", indexPath)
	return os.RemoveAll(indexPath)
}
