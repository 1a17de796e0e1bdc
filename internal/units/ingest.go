package units

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/tmc/langchaingo/vectorstores"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
)

// Ingest splits the files at paths into chunks and adds them to store. It
// returns the number of chunks stored. Directories are walked.
func Ingest(ctx context.Context, store vectorstores.VectorStore, paths []string, opts ...vectorstores.Option) (int, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	files, err := expand(paths)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, path := range files {
		docs, err := loadFile(ctx, path, splitter)
		if err != nil {
			return total, fmt.Errorf("load %s: %w", path, err)
		}
		if len(docs) == 0 {
			continue
		}
		for i := range docs {
			if docs[i].Metadata == nil {
				docs[i].Metadata = map[string]any{}
			}
			docs[i].Metadata["source"] = path
		}
		if _, err := store.AddDocuments(ctx, docs, opts...); err != nil {
			return total, fmt.Errorf("store %s: %w", path, err)
		}
		total += len(docs)
	}
	return total, nil
}

func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if supported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown", ".html", ".htm", ".csv", ".pdf":
		return true
	}
	return false
}

func loadFile(ctx context.Context, path string, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var loader documentloaders.Loader
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		loader = documentloaders.NewHTML(f)
	case ".csv":
		loader = documentloaders.NewCSV(f)
	case ".pdf":
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		loader = documentloaders.NewPDF(f, info.Size())
	default:
		loader = documentloaders.NewText(f)
	}
	return loader.LoadAndSplit(ctx, splitter)
}
