package consist_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConsist(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Consist Suite")
}
