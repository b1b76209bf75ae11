package model

import (
	"fmt"
	"strings"
)

// TagName is the struct tag key read during table derivation.
const TagName = "tablex"

// Tag represents a parsed tablex struct tag
type Tag struct {
	Skip          bool
	Column        string
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	NotNull       bool
	Type          string
	RefTable      string
	RefColumn     string
}

// HasReference reports whether the tag declares a foreign key.
func (t *Tag) HasReference() bool {
	return t.RefTable != "" || t.RefColumn != ""
}

// ParseTag parses a tablex tag string such as
//
//	column:owner_id;notnull;references:user_info(id)
//
// Options may be separated by spaces, semicolons or commas. A reference must
// name both the target table and the target column.
func ParseTag(tagStr string) (*Tag, error) {
	tag := &Tag{}
	tagStr = strings.TrimSpace(tagStr)
	if tagStr == "" {
		return tag, nil
	}
	if tagStr == "-" {
		tag.Skip = true
		return tag, nil
	}

	// Support space, semicolon, comma as separators (but keep comma in parens)
	var sb strings.Builder
	inParen := false
	for _, r := range tagStr {
		switch r {
		case '(':
			inParen = true
			sb.WriteRune(r)
		case ')':
			inParen = false
			sb.WriteRune(r)
		case ';', ',':
			if inParen {
				sb.WriteRune(r)
			} else {
				sb.WriteRune(' ')
			}
		default:
			sb.WriteRune(r)
		}
	}

	for _, part := range strings.Fields(sb.String()) {
		key, val, _ := strings.Cut(part, ":")
		key = strings.ToLower(key)
		val = strings.TrimSpace(val)

		switch key {
		case "column":
			if val == "" {
				return nil, fmt.Errorf("empty column name")
			}
			tag.Column = val
		case "pk", "primary_key":
			tag.PrimaryKey = true
		case "auto", "autoincrement", "auto_increment":
			tag.AutoIncrement = true
		case "unique":
			tag.Unique = true
		case "notnull", "not_null":
			tag.NotNull = true
		case "type":
			if val == "" {
				return nil, fmt.Errorf("empty type")
			}
			tag.Type = val
		case "references":
			table, column, err := parseReference(val)
			if err != nil {
				return nil, err
			}
			tag.RefTable, tag.RefColumn = table, column
		default:
			return nil, fmt.Errorf("unknown option %q", key)
		}
	}
	return tag, nil
}

// parseReference splits "table(column)" into its parts. Both must be present.
func parseReference(val string) (string, string, error) {
	open := strings.IndexByte(val, '(')
	if open < 0 || !strings.HasSuffix(val, ")") {
		return "", "", fmt.Errorf("reference %q must have the form table(column)", val)
	}
	table := strings.TrimSpace(val[:open])
	column := strings.TrimSpace(val[open+1 : len(val)-1])
	if table == "" || column == "" {
		return "", "", fmt.Errorf("reference %q must name both a table and a column", val)
	}
	return table, column, nil
}
