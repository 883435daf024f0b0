package excel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"vocab-quiz-service/internal/domain"
)

var greetings = domain.TopicKey{Level: "HSK1", Chapter: "1", Topic: "greetings"}

func TestImportWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hsk1.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"level", "chapter", "topic", "index", "word", "pinyin", "english", "chinese", "template a", "template b", "folder"},
		{"HSK1", "1", "greetings", 2, "谢谢", "xiè xie", "thanks", "感谢", "How do you say thanks?", ""},
		{"HSK1", "1", "greetings", 1, "你好", "nǐ hǎo", "hello", "问候", "How do you say hello?", "Which word greets?"},
		{},
		{"HSK1", "1", "greetings", 3, "", "", "", "", "", ""},
		{"", "", "", "", "跑", "pǎo", "run", "", "Which word means run?", "", "verbs"},
	})

	result, err := Import(ImportConfig{
		FilePath:        path,
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
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Rows != 4 || result.Skipped != 1 || len(result.Errors) != 1 {
		t.Fatalf("unexpected counts rows=%d skipped=%d errors=%v", result.Rows, result.Skipped, result.Errors)
	}

	items := result.Topics[greetings]
	if len(items) != 2 || items[0].Word != "你好" || items[1].Word != "谢谢" {
		t.Fatalf("expected items ordered by index, got %+v", items)
	}
	if items[0].QuestionTemplateB != "Which word greets?" || items[0].Pinyin != "nǐ hǎo" {
		t.Fatalf("fields not mapped: %+v", items[0])
	}

	verbs := result.Topics[domain.FolderKey("verbs")]
	if len(verbs) != 1 || verbs[0].Word != "跑" || verbs[0].Index != 1 {
		t.Fatalf("unexpected folder items %+v", verbs)
	}
	if keys := result.Keys(); len(keys) != 2 || keys[0] != domain.FolderKey("verbs") {
		t.Fatalf("unexpected key order %+v", keys)
	}
}

func TestImportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.csv")
	data := "level,chapter,topic,index,word,pinyin,english\n" +
		"HSK1,1,greetings,1,你好,nǐ hǎo,hello\n" +
		"HSK1,1,greetings,x,再见,zài jiàn,goodbye\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	result, err := Import(cfg)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(result.Topics[greetings]) != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestWorkbookLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hsk1.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"level", "chapter", "topic", "index", "word"},
		{"HSK1", "1", "greetings", 1, "你好"},
		{"HSK1", "1", "greetings", 2, "谢谢"},
	})

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	loader, result, err := NewWorkbookLoader(cfg)
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	if result.Rows != 2 {
		t.Fatalf("expected 2 rows, got %d", result.Rows)
	}

	items, err := loader.LoadVocabulary(context.Background(), greetings)
	if err != nil || len(items) != 2 {
		t.Fatalf("load: %d items (err %v)", len(items), err)
	}
	if _, err := loader.LoadVocabulary(context.Background(), domain.FolderKey("nope")); !errors.Is(err, domain.ErrTopicNotFound) {
		t.Fatalf("expected ErrTopicNotFound, got %v", err)
	}
}

func TestImportRequiresWordColumn(t *testing.T) {
	if _, err := Import(ImportConfig{FilePath: filepath.Join(t.TempDir(), "x.csv")}); err == nil {
		t.Fatalf("expected an error")
	}
}

func writeWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
}
