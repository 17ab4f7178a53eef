//go:build docker

package cli

// Container images are upgraded by pulling a new tag.
func setupSelfUpgrade() {}
