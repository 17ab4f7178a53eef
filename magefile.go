//go:build mage

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "kohort"

// Build builds Kohort for Linux with Green Tea GC
func Build() error {
	fmt.Println("Building Kohort for Linux with Go 1.25 + Green Tea GC...")
	env := map[string]string{
		"GOOS":         "linux",
		"GOARCH":       "amd64",
		"GOEXPERIMENT": "greenteagc",
		"CGO_ENABLED":  "0",
	}
	return sh.RunWith(env, "go", "build", "-o", binary+"-linux-amd64", "./cmd/kohort")
}

// BuildDocker builds the container binary without the self-upgrade flags
func BuildDocker() error {
	fmt.Println("Building Kohort for Docker...")
	env := map[string]string{
		"GOOS":        "linux",
		"CGO_ENABLED": "0",
	}
	return sh.RunWith(env, "go", "build", "-tags", "docker", "-o", binary+"-docker", "./cmd/kohort")
}

// BuildLocal builds Kohort for current platform
func BuildLocal() error {
	fmt.Printf("Building Kohort for %s/%s...\n", runtime.GOOS, runtime.GOARCH)
	return sh.Run("go", "build", "-o", binary, "./cmd/kohort")
}

// Test runs unit tests
func Test() error {
	fmt.Println("Running tests...")
	return sh.Run("go", "test", "-race", "./...")
}

// TestIntegration runs unit and PostgreSQL-backed tests (uses DATABASE_URL)
func TestIntegration() error {
	fmt.Println("Running integration tests...")
	return sh.Run("go", "test", "-race", "-tags", "integration", "./...")
}

// Clean removes build artifacts
func Clean() error {
	fmt.Println("Cleaning build artifacts...")
	for _, name := range []string{binary, binary + "-linux-amd64", binary + "-docker"} {
		_ = os.Remove(name)
	}
	return nil
}

// Fmt runs gofmt on all Go files
func Fmt() error {
	fmt.Println("Formatting code...")
	return sh.Run("go", "fmt", "./...")
}

// Vet runs go vet on all Go files
func Vet() error {
	fmt.Println("Vetting code...")
	return sh.Run("go", "vet", "./...")
}

// Deps downloads dependencies
func Deps() error {
	fmt.Println("Downloading dependencies...")
	return sh.Run("go", "mod", "download")
}

// Tidy tidies go.mod
func Tidy() error {
	fmt.Println("Tidying go.mod...")
	return sh.Run("go", "mod", "tidy")
}

// CI runs all checks for continuous integration
func CI() error {
	mg.SerialDeps(Deps, Fmt, Vet, Test)
	fmt.Println("All CI checks passed!")
	return nil
}
