package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// CodeRequest carries what a code generator may draw on.
type CodeRequest struct {
	CaseType     string
	Source       string
	DepartmentID *string
}

// CodeGenerator produces the human-readable case code assigned once at creation.
type CodeGenerator interface {
	Generate(ctx context.Context, req CodeRequest) (string, error)
}

// CodeGeneratorFunc adapts a function to CodeGenerator.
type CodeGeneratorFunc func(ctx context.Context, req CodeRequest) (string, error)

// Generate calls f.
func (f CodeGeneratorFunc) Generate(ctx context.Context, req CodeRequest) (string, error) {
	return f(ctx, req)
}

// DefaultCodeGenerator issues DOF-XXXXXXXX codes.
var DefaultCodeGenerator CodeGenerator = CodeGeneratorFunc(func(context.Context, CodeRequest) (string, error) {
	return generateCaseCode(), nil
})

func generateCaseCode() string {
	return "DOF-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
