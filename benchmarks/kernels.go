package benchmarks

import (
	"fmt"

	"github.com/sarchlab/milosim/emu"
	"github.com/sarchlab/milosim/timing/core"
)

// GetMicrobenchmarks returns the standard kernel set. Each kernel targets a
// specific core mechanism: issue throughput, dependency stalls, divergence,
// barriers with shared memory, and the full tiled matrix multiply.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		ArithmeticThroughput(),
		DependencyChain(),
		Divergence(),
		SharedExchange(),
		MatMul8x8(),
	}
}

// ArithmeticThroughput issues independent integer and float adds; the class
// mix gives the dual-issue logic something to pair.
func ArithmeticThroughput() Benchmark {
	return Benchmark{
		Name:        "arithmetic_throughput",
		Description: "independent ALU/FPU operations, dual-issue friendly",
		Warps:       1,
		Source: `
			addi r1, r1, 1
			fadd r10, r11, r12
			addi r2, r2, 1
			fadd r13, r11, r12
			addi r3, r3, 1
			fadd r14, r11, r12
			addi r4, r4, 1
			fadd r15, r11, r12
			addi r1, r1, 1
			fadd r16, r11, r12
			addi r2, r2, 1
			fadd r17, r11, r12
			tid r5
			shli r6, r5, 2
			add r7, r1, r2
			str r7, [r6+0]
			exit
		`,
		Check: func(mem *emu.GlobalMemory, c *core.Core) error {
			// r1 = r2 = 2, so every lane stores 4.
			for lane := 0; lane < emu.NumLanes; lane++ {
				if got := mem.Read32(uint64(lane * 4)); got != 4 {
					return fmt.Errorf("lane %d: got %d, want 4", lane, got)
				}
			}
			return nil
		},
	}
}

// DependencyChain strings 16 serial adds through one register so every
// instruction waits on the scoreboard.
func DependencyChain() Benchmark {
	source := ""
	for i := 0; i < 16; i++ {
		source += "addi r1, r1, 1\n"
	}
	source += `
		tid r2
		shli r3, r2, 2
		str r1, [r3+0]
		exit
	`
	return Benchmark{
		Name:        "dependency_chain",
		Description: "16 dependent adds, exposes scoreboard stall latency",
		Warps:       1,
		Source:      source,
		Check: func(mem *emu.GlobalMemory, c *core.Core) error {
			for lane := 0; lane < emu.NumLanes; lane++ {
				if got := mem.Read32(uint64(lane * 4)); got != 16 {
					return fmt.Errorf("lane %d: got %d, want 16", lane, got)
				}
			}
			return nil
		},
	}
}

// Divergence splits the warp on thread-ID parity; both sides run serially
// and reconverge at the SSY target.
func Divergence() Benchmark {
	return Benchmark{
		Name:        "divergence",
		Description: "two-way branch divergence with stack reconvergence",
		Warps:       1,
		Source: `
			tid r1
			andi r2, r1, 1
			mov r3, #0
			ssy done
			beq r2, r3, even
			mov r4, #100     ; odd lanes
			join
		even:
			mov r4, #200     ; even lanes
			join
		done:
			shli r5, r1, 2
			str r4, [r5+0]
			exit
		`,
		Check: func(mem *emu.GlobalMemory, c *core.Core) error {
			for lane := 0; lane < emu.NumLanes; lane++ {
				want := uint32(200)
				if lane%2 == 1 {
					want = 100
				}
				if got := mem.Read32(uint64(lane * 4)); got != want {
					return fmt.Errorf("lane %d: got %d, want %d", lane, got, want)
				}
			}
			return nil
		},
	}
}

// SharedExchange stages thread IDs in the scratchpad, synchronizes, then
// each thread reads its XOR-1 partner's value across the warp boundary.
func SharedExchange() Benchmark {
	return Benchmark{
		Name:        "shared_exchange",
		Description: "scratchpad exchange across a barrier, two warps",
		Warps:       2,
		Source: `
			tid r1
			shli r2, r1, 2
			sts r1, [r2+0]
			bar
			xori r3, r1, 1
			shli r4, r3, 2
			lds r5, [r4+0]
			str r5, [r2+0]
			exit
		`,
		Check: func(mem *emu.GlobalMemory, c *core.Core) error {
			for t := 0; t < 64; t++ {
				want := uint32(t ^ 1)
				if got := mem.Read32(uint64(t * 4)); got != want {
					return fmt.Errorf("thread %d: got %d, want %d", t, got, want)
				}
			}
			return nil
		},
	}
}

// Matrix layout for MatMul8x8 (word addresses are byte offsets / 4).
const (
	matABase = 0
	matBBase = 256
	matCBase = 512
)

// MatMul8x8 computes C = A x B over 8x8 integer matrices with 64 threads in
// two warps. Tiles stage through shared memory behind a barrier; the inner
// product loop runs IMAD with a predicated back-branch.
func MatMul8x8() Benchmark {
	return Benchmark{
		Name:        "matmul_8x8",
		Description: "tiled 8x8 matrix multiply, two warps",
		Warps:       2,
		Source: `
			tid  r1
			shri r2, r1, 3       ; row
			andi r3, r1, 7       ; col
			shli r4, r1, 2       ; element byte offset

			; stage A and B tiles into the scratchpad
			ldr r5, [r4+0]
			sts r5, [r4+0]
			ldr r6, [r4+256]
			sts r6, [r4+256]
			bar

			mov  r7, #0          ; acc
			mov  r8, #0          ; k
			mov  r17, #8
			shli r9, r2, 5       ; row * 8 words
			shli r10, r3, 2      ; col byte offset
		loop:
			shli r11, r8, 2
			add  r12, r9, r11
			lds  r13, [r12+0]    ; A[row][k]
			shli r14, r8, 5
			add  r15, r14, r10
			lds  r16, [r15+256]  ; B[k][col]
			imad r7, r13, r16, r7
			addi r8, r8, 1
			isetp p0, r8, r17, lt
			@p0 bra loop

			str r7, [r4+512]
			exit
		`,
		Setup: func(mem *emu.GlobalMemory) {
			// A[i] = i, B = identity, so C must equal A.
			for i := 0; i < 64; i++ {
				mem.Write32(uint64(matABase+i*4), uint32(i))
			}
			for k := 0; k < 8; k++ {
				mem.Write32(uint64(matBBase+(k*8+k)*4), 1)
			}
		},
		Check: func(mem *emu.GlobalMemory, c *core.Core) error {
			for i := 0; i < 64; i++ {
				if got := mem.Read32(uint64(matCBase + i*4)); got != uint32(i) {
					return fmt.Errorf("C[%d]: got %d, want %d", i, got, i)
				}
			}
			return nil
		},
	}
}
