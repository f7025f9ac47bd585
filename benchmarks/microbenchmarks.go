package benchmarks

import (
	"github.com/sarchlab/ripsim/emu"
	"github.com/sarchlab/ripsim/insts"
)

// DataBase is where benchmarks that touch memory keep their data.
const DataBase = emu.DefaultMemoryBase + 0x8000

// ResultReg is the register every benchmark leaves its result in (a0).
const ResultReg uint8 = 10

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// targets a specific pipeline behavior.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		countdownLoop(),
		mulDiv(),
		matrixMultiply2x2(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: a loop, a
// matrix multiply and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		countdownLoop(),
		matrixMultiply2x2(),
		branchTaken(),
	}
}

// 1. Arithmetic Sequential - ALU throughput with mostly independent operations
func arithmeticSequential() Benchmark {
	instrs := make([]uint32, 0, 20)
	for i := 0; i < 4; i++ {
		for rd := uint8(10); rd < 15; rd++ {
			instrs = append(instrs, insts.ADDI(rd, rd, 1))
		}
	}

	return Benchmark{
		Name:           "arithmetic_sequential",
		Description:    "20 ADDIs over 5 registers - measures ALU throughput",
		Program:        BuildProgram(instrs...),
		ExpectedResult: 4,
	}
}

// 2. Dependency Chain - every instruction consumes the previous result
func dependencyChain() Benchmark {
	return Benchmark{
		Name:           "dependency_chain",
		Description:    "20 dependent ADDIs (a0 = a0 + 1) - measures forwarding",
		Program:        buildDependencyChain(20),
		ExpectedResult: 20,
	}
}

func buildDependencyChain(n int) []byte {
	instrs := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		instrs = append(instrs, insts.ADDI(ResultReg, ResultReg, 1))
	}
	return BuildProgram(instrs...)
}

// 3. Memory Sequential - store/load pairs with a load-use hazard between pairs
func memorySequential() Benchmark {
	instrs := []uint32{insts.ADDI(ResultReg, 0, 42)}
	for i := int32(0); i < 10; i++ {
		instrs = append(instrs,
			insts.SW(ResultReg, 11, 4*i),
			insts.LW(ResultReg, 11, 4*i),
		)
	}

	return Benchmark{
		Name:        "memory_sequential",
		Description: "10 store/load pairs to sequential words - measures load-use stalls",
		Setup: func(regFile *emu.RegFile, _ *emu.Memory) {
			regFile.WriteReg(11, DataBase)
		},
		Program:        BuildProgram(instrs...),
		ExpectedResult: 42,
	}
}

// 4. Function Calls - jal/jalr pairs
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "5 calls to a leaf function - measures call/return overhead",
		Program: BuildProgram(
			insts.ADDI(ResultReg, 0, 0),
			insts.JAL(emu.RegRA, 24), // call inc
			insts.JAL(emu.RegRA, 20),
			insts.JAL(emu.RegRA, 16),
			insts.JAL(emu.RegRA, 12),
			insts.JAL(emu.RegRA, 8),
			insts.JAL(0, 12), // to end
			// inc:
			insts.ADDI(ResultReg, ResultReg, 1),
			insts.JALR(0, emu.RegRA, 0),
		),
		ExpectedResult: 5,
	}
}

// 5. Branch Taken - forward branches that skip one instruction each
func branchTaken() Benchmark {
	instrs := []uint32{insts.ADDI(ResultReg, 0, 0)}
	for i := 0; i < 5; i++ {
		instrs = append(instrs,
			insts.ADDI(ResultReg, ResultReg, 1),
			insts.Branch(insts.OpBEQ, 0, 0, 8),
			insts.ADDI(ResultReg, ResultReg, 100), // skipped
		)
	}

	return Benchmark{
		Name:           "branch_taken",
		Description:    "5 always-taken forward branches - measures flush cost",
		Program:        BuildProgram(instrs...),
		ExpectedResult: 5,
	}
}

// 6. Countdown Loop - one backward branch taken many times
func countdownLoop() Benchmark {
	return Benchmark{
		Name:        "countdown_loop",
		Description: "sum 10..1 in a loop - measures branch prediction",
		Program: BuildProgram(
			insts.ADDI(5, 0, 10),
			insts.ADDI(ResultReg, 0, 0),
			// loop:
			insts.RType(insts.OpADD, ResultReg, ResultReg, 5),
			insts.ADDI(5, 5, -1),
			insts.Branch(insts.OpBNE, 5, 0, -8),
		),
		ExpectedResult: 55,
	}
}

// 7. Multiply/Divide - M extension results feeding each other
func mulDiv() Benchmark {
	return Benchmark{
		Name:        "mul_div",
		Description: "dependent multiply, divide and remainder",
		Program: BuildProgram(
			insts.ADDI(5, 0, 7),
			insts.ADDI(6, 0, 6),
			insts.RType(insts.OpMUL, ResultReg, 5, 6),  // 42
			insts.RType(insts.OpDIV, 11, ResultReg, 6), // 7
			insts.RType(insts.OpREM, 12, ResultReg, 5), // 0
			insts.RType(insts.OpDIVU, 13, 5, 0),        // all ones
			insts.RType(insts.OpADD, ResultReg, ResultReg, 11),
			insts.RType(insts.OpADD, ResultReg, ResultReg, 12),
			insts.RType(insts.OpADD, ResultReg, ResultReg, 13), // 48
		),
		ExpectedResult: 48,
	}
}

// 8. Matrix Multiply 2x2 - loads, multiplies and stores
func matrixMultiply2x2() Benchmark {
	a := []uint32{1, 2, 3, 4}
	b := []uint32{5, 6, 7, 8}

	const (
		a00, a01, a10, a11 = 5, 6, 7, 8
		b00, b01, b10, b11 = 28, 29, 30, 31
		t0, t1             = 12, 13
	)

	instrs := []uint32{
		insts.LW(a00, 11, 0), insts.LW(a01, 11, 4),
		insts.LW(a10, 11, 8), insts.LW(a11, 11, 12),
		insts.LW(b00, 11, 16), insts.LW(b01, 11, 20),
		insts.LW(b10, 11, 24), insts.LW(b11, 11, 28),
	}

	rows := [][4]uint8{
		{a00, b00, a01, b10},
		{a00, b01, a01, b11},
		{a10, b00, a11, b10},
		{a10, b01, a11, b11},
	}
	for i, r := range rows {
		c := uint8(14 + i)
		instrs = append(instrs,
			insts.RType(insts.OpMUL, t0, r[0], r[1]),
			insts.RType(insts.OpMUL, t1, r[2], r[3]),
			insts.RType(insts.OpADD, c, t0, t1),
			insts.SW(c, 11, int32(32+4*i)),
		)
	}
	instrs = append(instrs,
		insts.RType(insts.OpADD, ResultReg, 14, 15),
		insts.RType(insts.OpADD, ResultReg, ResultReg, 16),
		insts.RType(insts.OpADD, ResultReg, ResultReg, 17),
	)

	return Benchmark{
		Name:        "matrix_multiply_2x2",
		Description: "2x2 integer matrix multiply through memory",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			regFile.WriteReg(11, DataBase)
			for i, v := range append(a, b...) {
				_ = memory.Write32(DataBase+uint32(4*i), v)
			}
		},
		Program:        BuildProgram(instrs...),
		ExpectedResult: 19 + 22 + 43 + 50,
	}
}
