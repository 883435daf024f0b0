package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"vocab-quiz-service/internal/domain"
)

// ImportConfig maps workbook columns (letters) onto vocabulary fields.
// An empty column is not read.
type ImportConfig struct {
	FilePath        string
	SheetName       string // empty: first sheet
	StartRow        int    // 1-based
	LevelColumn     string
	ChapterColumn   string
	TopicColumn     string
	FolderColumn    string
	IndexColumn     string
	WordColumn      string
	PinyinColumn    string
	EnglishColumn   string
	ChineseColumn   string
	TemplateAColumn string
	TemplateBColumn string
}

// DefaultImportConfig returns the column layout of the bundled HSK workbooks.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		StartRow:        2,
		LevelColumn:     "A",
		ChapterColumn:   "B",
		TopicColumn:     "C",
		IndexColumn:     "D",
		WordColumn:      "E",
		PinyinColumn:    "F",
		EnglishColumn:   "G",
		ChineseColumn:   "H",
		TemplateAColumn: "I",
		TemplateBColumn: "J",
		FolderColumn:    "K",
	}
}

// ImportResult holds the result of reading a vocabulary file.
type ImportResult struct {
	Topics  map[domain.TopicKey][]domain.VocabularyItem
	Rows    int
	Skipped int
	Errors  []string
}

// Keys returns the imported topic keys in a stable order.
func (r *ImportResult) Keys() []domain.TopicKey {
	keys := make([]domain.TopicKey, 0, len(r.Topics))
	for k := range r.Topics {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID() < keys[j].ID() })
	return keys
}

// Import reads an .xlsx workbook or a .csv file.
func Import(cfg ImportConfig) (*ImportResult, error) {
	if cfg.StartRow <= 0 {
		cfg.StartRow = 1
	}
	rows, err := readRows(cfg)
	if err != nil {
		return nil, err
	}
	cols, err := resolveColumns(cfg)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Topics: make(map[domain.TopicKey][]domain.VocabularyItem)}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < cfg.StartRow || blank(row) {
			continue
		}
		result.Rows++
		key, item, err := cols.parse(row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		if item.Index == 0 {
			item.Index = len(result.Topics[key]) + 1
		}
		result.Topics[key] = append(result.Topics[key], item)
	}
	for key, items := range result.Topics {
		sort.SliceStable(items, func(i, j int) bool { return items[i].Index < items[j].Index })
		result.Topics[key] = items
	}
	return result, nil
}

func readRows(cfg ImportConfig) ([][]string, error) {
	if strings.ToLower(filepath.Ext(cfg.FilePath)) == ".csv" {
		return readCSV(cfg.FilePath)
	}

	f, err := excelize.OpenFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := cfg.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, row)
	}
}

// columns holds 0-based indexes, -1 for unmapped fields.
type columns struct {
	level, chapter, topic, folder, index, word, pinyin, english, chinese, templateA, templateB int
}

func resolveColumns(cfg ImportConfig) (columns, error) {
	var cols columns
	targets := []struct {
		name string
		dst  *int
	}{
		{cfg.LevelColumn, &cols.level},
		{cfg.ChapterColumn, &cols.chapter},
		{cfg.TopicColumn, &cols.topic},
		{cfg.FolderColumn, &cols.folder},
		{cfg.IndexColumn, &cols.index},
		{cfg.WordColumn, &cols.word},
		{cfg.PinyinColumn, &cols.pinyin},
		{cfg.EnglishColumn, &cols.english},
		{cfg.ChineseColumn, &cols.chinese},
		{cfg.TemplateAColumn, &cols.templateA},
		{cfg.TemplateBColumn, &cols.templateB},
	}
	for _, t := range targets {
		if t.name == "" {
			*t.dst = -1
			continue
		}
		n, err := excelize.ColumnNameToNumber(strings.ToUpper(t.name))
		if err != nil {
			return columns{}, fmt.Errorf("column %q: %w", t.name, err)
		}
		*t.dst = n - 1
	}
	if cols.word < 0 {
		return columns{}, fmt.Errorf("word column is required")
	}
	return cols, nil
}

func (c columns) parse(row []string) (domain.TopicKey, domain.VocabularyItem, error) {
	get := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	key := domain.TopicKey{Level: get(c.level), Chapter: get(c.chapter), Topic: get(c.topic)}
	if folder := get(c.folder); folder != "" {
		key = domain.FolderKey(folder)
	}
	if key.Folder == "" && key.Level == "" && key.Chapter == "" && key.Topic == "" {
		return key, domain.VocabularyItem{}, fmt.Errorf("row has no topic")
	}

	item := domain.VocabularyItem{
		Word:              get(c.word),
		Pinyin:            get(c.pinyin),
		EnglishDefinition: get(c.english),
		ChineseDefinition: get(c.chinese),
		QuestionTemplateA: get(c.templateA),
		QuestionTemplateB: get(c.templateB),
	}
	if item.Word == "" {
		return key, item, fmt.Errorf("word cannot be empty")
	}
	if raw := get(c.index); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return key, item, fmt.Errorf("invalid index %q", raw)
		}
		item.Index = idx
	}
	return key, item, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// WorkbookLoader serves vocabulary from a file read once at start-up.
type WorkbookLoader struct {
	topics map[string][]domain.VocabularyItem
}

// NewWorkbookLoader imports cfg.FilePath.
func NewWorkbookLoader(cfg ImportConfig) (*WorkbookLoader, *ImportResult, error) {
	result, err := Import(cfg)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string][]domain.VocabularyItem, len(result.Topics))
	for key, items := range result.Topics {
		byID[key.ID()] = items
	}
	return &WorkbookLoader{topics: byID}, result, nil
}

func (l *WorkbookLoader) LoadVocabulary(_ context.Context, key domain.TopicKey) ([]domain.VocabularyItem, error) {
	items, ok := l.topics[key.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTopicNotFound, key.ID())
	}
	return append([]domain.VocabularyItem(nil), items...), nil
}
