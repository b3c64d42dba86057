// Copyright 2025 Certen Protocol
//
// Recursive-descent parser for:
//
//	default_certification(ValidationArgs{no_certification:Empty{}})
//
// or
//
//	default_certification(ValidationArgs{certification:Certification{
//	  no_request_certification:Empty{} | request_certification:RequestCertification{
//	    certified_request_headers:[...],certified_query_parameters:[...]
//	  },
//	  response_certification:ResponseCertification{
//	    certified_response_headers:ResponseHeaderList{headers:[...]} |
//	    response_header_exclusions:ResponseHeaderList{headers:[...]}
//	  }
//	}})
//
// Whitespace is insignificant and skipped by the lexer; the parser accepts
// exactly the property ordering the Emit function produces (request part
// before response part), matching spec.md §9's "must accept the specific
// ordering of object properties emitted by the canonical printer".

package cel

type parser struct {
	lex *lexer
	tok token
}

func newParser(input string) (*parser, error) {
	p := &parser{lex: newLexer(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) expect(kind tokenKind, want string) error {
	if p.tok.kind != kind {
		return &SyntaxError{Offset: p.tok.offset, Message: "expected " + want}
	}
	return p.advance()
}

func (p *parser) expectIdent(name string) error {
	if p.tok.kind != tokIdent || p.tok.text != name {
		return &SyntaxError{Offset: p.tok.offset, Message: "expected identifier " + name}
	}
	return p.advance()
}

// Parse parses the certification grammar into a Model.
func Parse(input string) (*Model, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}

	if p.tok.kind != tokIdent {
		return nil, &SyntaxError{Offset: p.tok.offset, Message: "expected function name"}
	}
	funcName := p.tok.text
	if funcName != "default_certification" {
		return nil, &UnrecognizedFunctionError{Name: funcName}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	if err := p.expectIdent("ValidationArgs"); err != nil {
		return nil, err
	}
	if err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}

	model, err := p.parseValidationArgsBody()
	if err != nil {
		return nil, err
	}

	if err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, &SyntaxError{Offset: p.tok.offset, Message: "unexpected trailing input"}
	}

	return model, nil
}

func (p *parser) parseValidationArgsBody() (*Model, error) {
	if p.tok.kind != tokIdent {
		return nil, &SyntaxError{Offset: p.tok.offset, Message: "expected ValidationArgs property"}
	}

	switch p.tok.text {
	case "no_certification":
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(tokColon, ":"); err != nil {
			return nil, err
		}
		if err := p.parseEmptyObject(); err != nil {
			return nil, err
		}
		return &Model{Skip: true}, nil

	case "certification":
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(tokColon, ":"); err != nil {
			return nil, err
		}
		if err := p.expectIdent("Certification"); err != nil {
			return nil, err
		}
		if err := p.expect(tokLBrace, "{"); err != nil {
			return nil, err
		}
		model, err := p.parseCertificationBody()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRBrace, "}"); err != nil {
			return nil, err
		}
		return model, nil

	default:
		return nil, &MissingObjectPropertyError{Object: "ValidationArgs", Property: "no_certification|certification"}
	}
}

// parseEmptyObject consumes "Empty" "{" "}".
func (p *parser) parseEmptyObject() error {
	if err := p.expectIdent("Empty"); err != nil {
		return err
	}
	if err := p.expect(tokLBrace, "{"); err != nil {
		return err
	}
	return p.expect(tokRBrace, "}")
}

func (p *parser) parseCertificationBody() (*Model, error) {
	request, err := p.parseRequestPart()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokComma, ","); err != nil {
		return nil, err
	}
	response, err := p.parseResponsePart()
	if err != nil {
		return nil, err
	}
	return &Model{Request: request, Response: response}, nil
}

func (p *parser) parseRequestPart() (*RequestCertification, error) {
	if p.tok.kind != tokIdent {
		return nil, &SyntaxError{Offset: p.tok.offset, Message: "expected request certification property"}
	}

	switch p.tok.text {
	case "no_request_certification":
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(tokColon, ":"); err != nil {
			return nil, err
		}
		if err := p.parseEmptyObject(); err != nil {
			return nil, err
		}
		return nil, nil

	case "request_certification":
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(tokColon, ":"); err != nil {
			return nil, err
		}
		if err := p.expectIdent("RequestCertification"); err != nil {
			return nil, err
		}
		if err := p.expect(tokLBrace, "{"); err != nil {
			return nil, err
		}
		if err := p.expectIdent("certified_request_headers"); err != nil {
			return nil, err
		}
		if err := p.expect(tokColon, ":"); err != nil {
			return nil, err
		}
		headers, err := p.parseStringArray()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokComma, ","); err != nil {
			return nil, err
		}
		if err := p.expectIdent("certified_query_parameters"); err != nil {
			return nil, err
		}
		if err := p.expect(tokColon, ":"); err != nil {
			return nil, err
		}
		params, err := p.parseStringArray()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRBrace, "}"); err != nil {
			return nil, err
		}
		return &RequestCertification{CertifiedHeaders: headers, CertifiedQueryParams: params}, nil

	default:
		return nil, &MissingObjectPropertyError{Object: "Certification", Property: "no_request_certification|request_certification"}
	}
}

func (p *parser) parseResponsePart() (*ResponseCertification, error) {
	if err := p.expectIdent("response_certification"); err != nil {
		return nil, &MissingObjectPropertyError{Object: "Certification", Property: "response_certification"}
	}
	if err := p.expect(tokColon, ":"); err != nil {
		return nil, err
	}
	if err := p.expectIdent("ResponseCertification"); err != nil {
		return nil, err
	}
	if err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}

	if p.tok.kind != tokIdent {
		return nil, &SyntaxError{Offset: p.tok.offset, Message: "expected response header property"}
	}

	var kind ResponseKind
	switch p.tok.text {
	case "certified_response_headers":
		kind = CertifiedHeaders
	case "response_header_exclusions":
		kind = HeaderExclusions
	default:
		return nil, &MissingObjectPropertyError{Object: "ResponseCertification", Property: "certified_response_headers|response_header_exclusions"}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(tokColon, ":"); err != nil {
		return nil, err
	}
	if err := p.expectIdent("ResponseHeaderList"); err != nil {
		return nil, err
	}
	if err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	if err := p.expectIdent("headers"); err != nil {
		return nil, err
	}
	if err := p.expect(tokColon, ":"); err != nil {
		return nil, err
	}
	headers, err := p.parseStringArray()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}
	if err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}

	return &ResponseCertification{Kind: kind, Headers: headers}, nil
}

func (p *parser) parseStringArray() ([]string, error) {
	if err := p.expect(tokLBrack, "["); err != nil {
		return nil, err
	}
	var out []string
	if p.tok.kind == tokRBrack {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return out, nil
	}
	for {
		if p.tok.kind != tokString {
			return nil, &UnexpectedNodeTypeError{Position: "string array element", Want: "string", Got: tokenKindName(p.tok.kind)}
		}
		out = append(out, p.tok.text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expect(tokRBrack, "]"); err != nil {
		return nil, err
	}
	return out, nil
}

func tokenKindName(k tokenKind) string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokLBrack:
		return "'['"
	case tokRBrack:
		return "']'"
	case tokColon:
		return "':'"
	case tokComma:
		return "','"
	default:
		return "unknown token"
	}
}
