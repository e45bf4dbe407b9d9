package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/certi-mate/compliance-api/internal/model"
)

// PublishDocument creates one page in the review database for a generated
// document. The body becomes an intro paragraph followed by one heading and
// paragraph per section.
func PublishDocument(ctx context.Context, client Client, dbID string, doc model.GeneratedDocument) (string, error) {
	if dbID == "" {
		return "", eris.New("notion: review database ID not configured")
	}

	props := notionapi.Properties{
		"Name":   titleProperty(doc.Title),
		"Type":   selectProperty(doc.DocumentType),
		"Status": selectProperty(doc.Status),
	}
	if doc.UserID != "" {
		props["User"] = richTextProperty(doc.UserID)
	}

	children := []notionapi.Block{paragraphBlock(doc.Content)}
	for _, sec := range doc.Sections {
		children = append(children, headingBlock(sec.Heading), paragraphBlock(sec.Body))
	}

	page, err := client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
		Children:   children,
	})
	if err != nil {
		return "", eris.Wrapf(err, "notion: publish document %s", doc.ID)
	}
	return string(page.ID), nil
}

func titleProperty(v string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Title: []notionapi.RichText{{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: v},
		}},
	}
}

func richTextProperty(v string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: v},
		}},
	}
}

func selectProperty(v string) notionapi.SelectProperty {
	return notionapi.SelectProperty{
		Type:   notionapi.PropertyTypeSelect,
		Select: notionapi.Option{Name: v},
	}
}

func headingBlock(text string) notionapi.Block {
	return &notionapi.Heading2Block{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeHeading2,
		},
		Heading2: notionapi.Heading{
			RichText: []notionapi.RichText{{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{Content: text},
			}},
		},
	}
}

func paragraphBlock(text string) notionapi.Block {
	// Notion caps a rich text span at 2000 characters.
	const maxSpan = 2000
	var spans []notionapi.RichText
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxSpan {
			chunk = chunk[:maxSpan]
		}
		spans = append(spans, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: chunk},
		})
		text = text[len(chunk):]
	}
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeParagraph,
		},
		Paragraph: notionapi.Paragraph{RichText: spans},
	}
}
