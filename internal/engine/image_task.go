package engine

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"wnacg-downloader/internal/helpers"
	"wnacg-downloader/internal/models"
)

// ImageDownloadTask drives one image within a comic's pipeline, gated by the
// manager's image semaphore, per SPEC_FULL.md §4.4.
type ImageDownloadTask struct {
	parent *ComicDownloadTask
	index  int
	url    string
	dir    string
	format models.DownloadFormat
}

func newImageDownloadTask(parent *ComicDownloadTask, index int, url, dir string, format models.DownloadFormat) *ImageDownloadTask {
	return &ImageDownloadTask{parent: parent, index: index, url: url, dir: dir, format: format}
}

// run is a smaller replica of ComicDownloadTask.process: it observes the
// parent's state cell, seeking an image permit only while the parent is
// Downloading. Once the permit is acquired the image is fetched and written
// to completion before the permit is released; a pause does not interrupt
// that download, it only keeps images still waiting from taking a permit.
func (it *ImageDownloadTask) run() {
	heldPermit := false

	defer func() {
		if heldPermit {
			<-it.parent.mgr.imgSem
		}
		if r := recover(); r != nil {
			log.WithField("comicId", it.parent.comic.ID).Errorf("image task %d panicked: %v", it.index, r)
		}
	}()

	for {
		switch it.parent.state.Get() {
		case models.StateCancelled:
			return

		case models.StatePaused:
			if heldPermit {
				<-it.parent.mgr.imgSem
				heldPermit = false
			}
			<-it.parent.state.Changed()

		case models.StateDownloading:
			if !heldPermit {
				changed := it.parent.state.Changed()
				select {
				case it.parent.mgr.imgSem <- struct{}{}:
					heldPermit = true
				case <-changed:
					continue
				}
			}
			it.download()
			return

		default:
			// The parent is not yet Downloading (e.g. still acquiring its
			// own comic permit); wait for the next state change.
			<-it.parent.state.Changed()
		}
	}
}

func (it *ImageDownloadTask) download() {
	comicID := it.parent.comic.ID

	if ext, concrete := it.format.Extension(); concrete {
		path := filepath.Join(it.dir, it.filename(ext))
		if _, err := os.Stat(path); err == nil {
			it.succeed()
			return
		}
	}

	data, srcFmt, err := it.parent.mgr.client.FetchImage(it.url)
	if err != nil {
		log.WithError(err).Warnf("image %d of comic %d: fetch failed", it.index, comicID)
		return
	}

	targetFmt := it.format
	if targetFmt == models.FormatOriginal {
		targetFmt = srcFmt
	}
	data, err = it.parent.mgr.client.Transcode(data, srcFmt, targetFmt)
	if err != nil {
		log.WithError(err).Warnf("image %d of comic %d: transcode failed", it.index, comicID)
		return
	}

	ext, ok := targetFmt.Extension()
	if !ok {
		ext, _ = srcFmt.Extension()
	}
	path := filepath.Join(it.dir, it.filename(ext))

	f, err := os.Create(path)
	if err != nil {
		log.WithError(err).Warnf("image %d of comic %d: create file failed", it.index, comicID)
		return
	}
	counter := &helpers.CounterWriter{Writer: f}
	_, writeErr := counter.Write(data)
	closeErr := f.Close()
	if writeErr != nil {
		log.WithError(writeErr).Warnf("image %d of comic %d: write failed", it.index, comicID)
		os.Remove(path)
		return
	}
	if closeErr != nil {
		log.WithError(closeErr).Warnf("image %d of comic %d: close failed", it.index, comicID)
		os.Remove(path)
		return
	}

	it.parent.mgr.bytesPerSec.Add(counter.Total)
	it.succeed()
}

func (it *ImageDownloadTask) succeed() {
	it.parent.downloadedImgCount.Add(1)
	it.parent.emit("")
}

func (it *ImageDownloadTask) filename(ext string) string {
	width := paddingWidth(it.parent.totalImgCount)
	return fmt.Sprintf("%0*d.%s", width, it.index+1, ext)
}

// paddingWidth is the zero-padded ordinal width from SPEC_FULL.md §4.5:
// 4 digits normally, widened to fit comics with more than 9,999 images.
func paddingWidth(total int64) int {
	width := 4
	for n := total; n >= 10000; n /= 10 {
		width++
	}
	return width
}
