// Package parser implements gravix's query language: a participle grammar
// translating pipeline queries (match/insert/delete/update/put, stream
// modifiers, fetch, function definitions) and schema queries (define/
// redefine/undefine) into internal/ir trees and internal/core schema
// mutations.
package parser

import "github.com/alecthomas/participle/v2/lexer"

var gravixLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Float", Pattern: `[-+]?\d+\.\d+`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Variable", Pattern: `\$[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_-]*`},
	{Name: "Op2", Pattern: `->|\.\.|==|!=|<=|>=`},
	{Name: "Punct", Pattern: `[{}()\[\]:;,.@!=<>+\-*/%]`},
	{Name: "Whitespace", Pattern: `\s+`},
})
