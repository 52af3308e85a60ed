package parser

import (
	"github.com/alecthomas/participle/v2"

	"gravix/internal/gravixerr"
)

var (
	pipelineParser = participle.MustBuild[Query](
		participle.Lexer(gravixLexer),
		participle.Unquote("String"),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(4),
	)
	schemaParser = participle.MustBuild[SchemaQuery](
		participle.Lexer(gravixLexer),
		participle.Unquote("String"),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(4),
	)
)

// ParsePipeline parses a match/insert/delete/update/put pipeline query,
// including any function definitions declared ahead of it and a trailing
// fetch clause.
func ParsePipeline(source string) (*Query, error) {
	q, err := pipelineParser.ParseString("", source)
	if err != nil {
		return nil, gravixerr.Wrap(gravixerr.CodeParse, "parse pipeline query", err)
	}
	return q, nil
}

// ParseSchema parses a define/redefine/undefine schema query.
func ParseSchema(source string) (*SchemaQuery, error) {
	q, err := schemaParser.ParseString("", source)
	if err != nil {
		return nil, gravixerr.Wrap(gravixerr.CodeParse, "parse schema query", err)
	}
	return q, nil
}
