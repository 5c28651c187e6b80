package translation

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/versewatch/core/books"
	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/internal/validation"
)

// Decode parses a translation document. The format is detected from the
// content: xz-compressed data is decompressed first, then svjson or Zefania
// XML is decoded. id names the translation; a name inside the document is
// used as the display name.
func Decode(id string, data []byte) (*Translation, error) {
	if validation.DetectFormat(data) == validation.FormatXZ {
		raw, err := decompressXZ(id, data)
		if err != nil {
			return nil, err
		}
		data = raw
	}

	sum := blake3.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	switch validation.DetectFormat(data) {
	case validation.FormatJSON:
		return decodeSVJSON(id, hash, data)
	case validation.FormatXML:
		return decodeZefania(id, hash, data)
	default:
		return nil, errors.NewParse("document", id, "unrecognised format")
	}
}

func decompressXZ(id string, data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		pe := errors.NewParse("xz", id, "invalid xz stream")
		pe.Err = err
		return nil, pe
	}
	raw, err := io.ReadAll(io.LimitReader(r, validation.MaxDocumentSize+1))
	if err != nil {
		pe := errors.NewParse("xz", id, "corrupt xz stream")
		pe.Err = err
		return nil, pe
	}
	if len(raw) > validation.MaxDocumentSize {
		return nil, errors.NewParse("xz", id, fmt.Sprintf("decompressed document exceeds %d bytes", validation.MaxDocumentSize))
	}
	return raw, nil
}

// decodeSVJSON reads {"id", "name", "books": {book: {chapter: {verse: text}}}}.
// encoding/json maps lose key order, so the document is walked token by
// token to keep books in document order.
func decodeSVJSON(id, hash string, data []byte) (*Translation, error) {
	b := NewBuilder(id, "").SetHash(hash).describe("svjson", id)
	dec := json.NewDecoder(bytes.NewReader(data))

	malformed := func(msg string, err error) (*Translation, error) {
		pe := errors.NewParse("svjson", id, msg)
		pe.Err = err
		return nil, pe
	}

	if err := expectDelim(dec, '{'); err != nil {
		return malformed("document is not an object", err)
	}
	sawBooks := false
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return malformed("invalid key", err)
		}
		switch key {
		case "name":
			var name string
			if err := dec.Decode(&name); err != nil {
				return malformed("name is not a string", err)
			}
			b.SetName(name)
		case "books":
			sawBooks = true
			if err := decodeSVJSONBooks(dec, b); err != nil {
				if b.err != nil {
					return nil, b.err
				}
				return malformed(err.Error(), nil)
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return malformed(fmt.Sprintf("invalid value for %q", key), err)
			}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return malformed("unterminated document", err)
	}
	if !sawBooks {
		return malformed(`missing "books"`, nil)
	}
	return b.Build()
}

func decodeSVJSONBooks(dec *json.Decoder, b *Builder) error {
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf(`"books" is not an object`)
	}
	for dec.More() {
		book, err := stringToken(dec)
		if err != nil {
			return err
		}
		b.AddBook(book)
		if err := expectDelim(dec, '{'); err != nil {
			return fmt.Errorf("%s: book is not an object", book)
		}
		for dec.More() {
			key, err := stringToken(dec)
			if err != nil {
				return err
			}
			chapter, err := strconv.Atoi(key)
			if err != nil {
				return fmt.Errorf("%s: chapter key %q is not a number", book, key)
			}
			b.AddChapter(book, chapter)
			if err := expectDelim(dec, '{'); err != nil {
				return fmt.Errorf("%s %d: chapter is not an object", book, chapter)
			}
			for dec.More() {
				key, err := stringToken(dec)
				if err != nil {
					return err
				}
				verse, err := strconv.Atoi(key)
				if err != nil {
					return fmt.Errorf("%s %d: verse key %q is not a number", book, chapter, key)
				}
				var text string
				if err := dec.Decode(&text); err != nil {
					return fmt.Errorf("%s %d:%d: verse text is not a string", book, chapter, verse)
				}
				b.AddVerse(book, chapter, verse, text)
			}
			if err := expectDelim(dec, '}'); err != nil {
				return err
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	return b.err
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %v", tok)
	}
	return s, nil
}

// Zefania XML selectors, compiled once.
var (
	zefRoot    = xpath.MustCompile("/XMLBIBLE")
	zefBooks   = xpath.MustCompile("BIBLEBOOK")
	zefChapter = xpath.MustCompile("CHAPTER")
	zefVerse   = xpath.MustCompile("VERS")
)

// decodeZefania reads XMLBIBLE/BIBLEBOOK[@bname|@bnumber]/CHAPTER[@cnumber]/VERS[@vnumber].
// Books without bname are named from the canon by bnumber.
func decodeZefania(id, hash string, data []byte) (*Translation, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		pe := errors.NewParse("zefania", id, "invalid XML")
		pe.Err = err
		return nil, pe
	}
	root := xmlquery.QuerySelector(doc, zefRoot)
	if root == nil {
		return nil, errors.NewParse("zefania", id, "missing XMLBIBLE root")
	}

	b := NewBuilder(id, root.SelectAttr("biblename")).SetHash(hash).describe("zefania", id)
	for _, bookNode := range xmlquery.QuerySelectorAll(root, zefBooks) {
		name, err := zefaniaBookName(bookNode)
		if err != nil {
			return nil, errors.NewParse("zefania", id, err.Error())
		}
		b.AddBook(name)
		for _, chNode := range xmlquery.QuerySelectorAll(bookNode, zefChapter) {
			chapter, err := strconv.Atoi(strings.TrimSpace(chNode.SelectAttr("cnumber")))
			if err != nil {
				return nil, errors.NewParse("zefania", id, fmt.Sprintf("%s: cnumber %q is not a number", name, chNode.SelectAttr("cnumber")))
			}
			b.AddChapter(name, chapter)
			for _, vNode := range xmlquery.QuerySelectorAll(chNode, zefVerse) {
				verse, err := strconv.Atoi(strings.TrimSpace(vNode.SelectAttr("vnumber")))
				if err != nil {
					return nil, errors.NewParse("zefania", id, fmt.Sprintf("%s %d: vnumber %q is not a number", name, chapter, vNode.SelectAttr("vnumber")))
				}
				b.AddVerse(name, chapter, verse, strings.Join(strings.Fields(vNode.InnerText()), " "))
			}
		}
	}
	return b.Build()
}

func zefaniaBookName(n *xmlquery.Node) (string, error) {
	if name := strings.TrimSpace(n.SelectAttr("bname")); name != "" {
		return name, nil
	}
	raw := strings.TrimSpace(n.SelectAttr("bnumber"))
	num, err := strconv.Atoi(raw)
	if err != nil || num < 1 || num > len(books.Canon) {
		return "", fmt.Errorf("book without bname has invalid bnumber %q", raw)
	}
	return books.Canon[num-1].Name, nil
}
