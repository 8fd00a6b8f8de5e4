package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/wudi/linpdf/ir/semantic"
)

// docSpec is the small JSON shape the CLI accepts to describe a document.
// It is intentionally minimal: the writer core consumes a semantic.Document
// built from it, and is otherwise agnostic to how callers construct one.
type docSpec struct {
	Info  *infoSpec  `json:"info"`
	Pages []pageSpec `json:"pages"`
}

type infoSpec struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Subject  string `json:"subject"`
	Creator  string `json:"creator"`
	Producer string `json:"producer"`
}

type pageSpec struct {
	MediaBox [4]float64 `json:"mediaBox"`
	Font     *fontSpec  `json:"font"`
	Text     string     `json:"text"`
	TextPos  [2]float64 `json:"textPos"`
	FontSize float64    `json:"fontSize"`
}

type fontSpec struct {
	Name     string `json:"name"`
	Subtype  string `json:"subtype"`
	BaseFont string `json:"baseFont"`
}

func loadDocSpec(path string) (*docSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document spec: %w", err)
	}
	var spec docSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing document spec: %w", err)
	}
	return &spec, nil
}

// toDocument builds the semantic.Document. Pages that name the same font
// end up pointing at the same *semantic.Font value, so the writer's object
// builder collapses them into a single shared indirect object.
func (s *docSpec) toDocument() *semantic.Document {
	fonts := make(map[string]*semantic.Font)
	doc := &semantic.Document{}

	if s.Info != nil {
		doc.Info = &semantic.DocumentInfo{
			Title:    s.Info.Title,
			Author:   s.Info.Author,
			Subject:  s.Info.Subject,
			Creator:  s.Info.Creator,
			Producer: s.Info.Producer,
		}
	}

	for i, ps := range s.Pages {
		page := &semantic.Page{
			Index: i,
			MediaBox: semantic.Rectangle{
				LLX: ps.MediaBox[0], LLY: ps.MediaBox[1],
				URX: ps.MediaBox[2], URY: ps.MediaBox[3],
			},
		}

		if ps.Font != nil {
			f, ok := fonts[ps.Font.Name]
			if !ok {
				f = &semantic.Font{Subtype: ps.Font.Subtype, BaseFont: ps.Font.BaseFont}
				fonts[ps.Font.Name] = f
			}
			page.Resources = &semantic.Resources{Fonts: map[string]*semantic.Font{ps.Font.Name: f}}

			size := ps.FontSize
			if size == 0 {
				size = 12
			}
			page.Contents = []semantic.ContentStream{{Operations: []semantic.Operation{
				{Operator: "BT"},
				{Operator: "Tf", Operands: []semantic.Operand{
					semantic.NameOperand{Value: ps.Font.Name},
					semantic.NumberOperand{Value: size},
				}},
				{Operator: "Td", Operands: []semantic.Operand{
					semantic.NumberOperand{Value: ps.TextPos[0]},
					semantic.NumberOperand{Value: ps.TextPos[1]},
				}},
				{Operator: "Tj", Operands: []semantic.Operand{semantic.StringOperand{Value: []byte(ps.Text)}}},
				{Operator: "ET"},
			}}}
		}

		doc.Pages = append(doc.Pages, page)
	}

	return doc
}
