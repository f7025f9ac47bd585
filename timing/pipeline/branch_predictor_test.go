package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ripsim/timing/pipeline"
)

var _ = Describe("Branch predictors", func() {
	const (
		pc     = uint32(0x1000)
		target = uint32(0x0f00)
	)

	config := pipeline.DefaultBranchPredictorConfig()

	Describe("ParsePredictorKind", func() {
		DescribeTable("names",
			func(name string, want pipeline.PredictorKind) {
				kind, err := pipeline.ParsePredictorKind(name)
				Expect(err).NotTo(HaveOccurred())
				Expect(kind).To(Equal(want))
			},
			Entry("no", "no", pipeline.PredictorNone),
			Entry("none", "none", pipeline.PredictorNone),
			Entry("onebit", "onebit", pipeline.PredictorOneBit),
			Entry("twobit", "TwoBit", pipeline.PredictorTwoBit),
			Entry("gshare", "gshare", pipeline.PredictorGshare),
		)

		It("should reject unknown names", func() {
			_, err := pipeline.ParsePredictorKind("tage")
			Expect(err).To(HaveOccurred())
		})

		It("should round-trip through String", func() {
			for _, kind := range []pipeline.PredictorKind{
				pipeline.PredictorNone, pipeline.PredictorOneBit,
				pipeline.PredictorTwoBit, pipeline.PredictorGshare,
			} {
				Expect(pipeline.ParsePredictorKind(kind.String())).To(Equal(kind))
			}
		})
	})

	Describe("NewBranchPredictor", func() {
		It("should build every kind", func() {
			bp, err := pipeline.NewBranchPredictor(pipeline.PredictorNone, config)
			Expect(err).NotTo(HaveOccurred())
			Expect(bp).To(BeAssignableToTypeOf(&pipeline.NonePredictor{}))

			bp, err = pipeline.NewBranchPredictor(pipeline.PredictorGshare, config)
			Expect(err).NotTo(HaveOccurred())
			Expect(bp).To(BeAssignableToTypeOf(&pipeline.GsharePredictor{}))
		})

		It("should reject table sizes that are not powers of two", func() {
			_, err := pipeline.NewBranchPredictor(pipeline.PredictorTwoBit,
				pipeline.BranchPredictorConfig{BHTSize: 100})
			Expect(err).To(MatchError(ContainSubstring("power of two")))
		})
	})

	Describe("NonePredictor", func() {
		It("should always predict the next instruction", func() {
			bp := pipeline.NewNonePredictor()
			bp.Update(pc, true, target)

			Expect(bp.Predict(pc)).To(Equal(pc + 4))
			Expect(bp.Stats().Mispredictions).To(Equal(uint64(1)))
		})
	})

	Describe("OneBitPredictor", func() {
		var bp *pipeline.OneBitPredictor

		BeforeEach(func() {
			bp = pipeline.NewOneBitPredictor(config)
		})

		It("should start not taken", func() {
			Expect(bp.Predict(pc)).To(Equal(pc + 4))
		})

		It("should follow the last outcome", func() {
			bp.Update(pc, true, target)
			Expect(bp.Predict(pc)).To(Equal(target))

			bp.Update(pc, false, target)
			Expect(bp.Predict(pc)).To(Equal(pc + 4))
		})
	})

	Describe("TwoBitPredictor", func() {
		var bp *pipeline.TwoBitPredictor

		BeforeEach(func() {
			bp = pipeline.NewTwoBitPredictor(config)
		})

		It("should fall back to pc+4 on a BTB miss", func() {
			Expect(bp.Predict(pc)).To(Equal(pc + 4))
			Expect(bp.Stats().BTBMisses).To(Equal(uint64(1)))
		})

		It("should tolerate one anomalous outcome", func() {
			bp.Update(pc, true, target) // weakly -> strongly taken
			bp.Update(pc, false, target)

			Expect(bp.Predict(pc)).To(Equal(target))
			Expect(bp.Stats().BTBHits).To(Equal(uint64(1)))
		})

		It("should switch after two not-taken outcomes", func() {
			bp.Update(pc, true, target)
			bp.Update(pc, false, target)
			bp.Update(pc, false, target)

			Expect(bp.Predict(pc)).To(Equal(pc + 4))
		})

		It("should saturate", func() {
			for i := 0; i < 10; i++ {
				bp.Update(pc, false, target)
			}
			bp.Update(pc, true, target)
			Expect(bp.Predict(pc)).To(Equal(pc + 4))

			bp.Update(pc, true, target)
			Expect(bp.Predict(pc)).To(Equal(target))
		})

		It("should count direction accuracy", func() {
			bp.Update(pc, true, target)
			bp.Update(pc, false, target)

			stats := bp.Stats()
			Expect(stats.Correct).To(Equal(uint64(1)))
			Expect(stats.Mispredictions).To(Equal(uint64(1)))
			Expect(stats.Accuracy()).To(BeNumerically("~", 50.0))
		})

		It("should forget everything on reset", func() {
			bp.Update(pc, true, target)
			bp.Reset()

			Expect(bp.Predict(pc)).To(Equal(pc + 4))
			Expect(bp.Stats().Predictions).To(Equal(uint64(1)))
		})
	})

	Describe("GsharePredictor", func() {
		var bp *pipeline.GsharePredictor

		BeforeEach(func() {
			bp = pipeline.NewGsharePredictor(pipeline.BranchPredictorConfig{HistoryBits: 4})
		})

		It("should shift outcomes into the history", func() {
			bp.Update(pc, true, target)
			bp.Update(pc, false, target)
			bp.Update(pc, true, target)

			Expect(bp.History()).To(Equal(uint32(0b101)))
		})

		It("should keep only the configured history length", func() {
			for i := 0; i < 8; i++ {
				bp.Update(pc, true, target)
			}

			Expect(bp.History()).To(Equal(uint32(0b1111)))
		})

		It("should index counters by history", func() {
			// history 0: train the entry for pc not taken twice.
			bp.Update(pc, false, target)
			Expect(bp.History()).To(Equal(uint32(0)))
			bp.Update(pc, false, target)

			// Taken once to fill the BTB; history becomes 1.
			bp.Update(pc, true, target)

			// Index (pc>>2 ^ 1) is a fresh weakly-taken counter.
			Expect(bp.Predict(pc)).To(Equal(target))
		})

		It("should clear the history on reset", func() {
			bp.Update(pc, true, target)
			bp.Reset()

			Expect(bp.History()).To(Equal(uint32(0)))
		})
	})
})
