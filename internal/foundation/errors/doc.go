// Package errors provides the classified error primitives used across docsmith.
//
// A ClassifiedError carries a category, a severity, a retry strategy and a
// free-form context map. Errors are created through the fluent ErrorBuilder:
//
//	err := errors.NewError(errors.CategoryConfig, "duplicate section base path").
//		Fatal().
//		WithContext("base_path", "/guide").
//		Build()
//
// The CLIErrorAdapter turns classified errors into exit codes and
// user-facing messages.
package errors
