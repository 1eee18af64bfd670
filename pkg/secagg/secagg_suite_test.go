package secagg_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSecAgg(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Secure Aggregation Protocol Suite")
}
