package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgelsp/internal/source"
)

func symbolNames(scan *fileScan) map[string]SymbolKind {
	out := make(map[string]SymbolKind)
	for _, s := range scan.Symbols {
		out[s.Name] = s.Kind
	}
	return out
}

func TestScanDeclarations(t *testing.T) {
	src := `pragma solidity ^0.8.0;
interface IToken { event Transfer(address indexed from, address indexed to, uint256 value); }
library Math { function add(uint a, uint b) internal pure returns (uint) { return a + b; } }
abstract contract Base {
    struct Position { uint256 size; }
    enum Side { Long, Short }
    mapping(address => mapping(address => uint256)) public allowance;
    address payable owner;
    modifier onlyOwner() { _; }
    /* function ghost() {} */
    string constant NAME = "contract Fake {}";
}
`
	scan := scanFile(source.NewVirtualFile("/p/A.sol", src))
	names := symbolNames(scan)
	assert.Equal(t, KindContract, names["IToken"])
	assert.Equal(t, KindContract, names["Math"])
	assert.Equal(t, KindContract, names["Base"])
	assert.Equal(t, KindEvent, names["Transfer"])
	assert.Equal(t, KindFunction, names["add"])
	assert.Equal(t, KindStruct, names["Position"])
	assert.Equal(t, KindEnum, names["Side"])
	assert.Equal(t, KindModifier, names["onlyOwner"])
	assert.Equal(t, KindVariable, names["allowance"])
	assert.Equal(t, KindVariable, names["owner"])
	assert.Equal(t, KindVariable, names["NAME"])
	assert.Equal(t, KindVariable, names["size"])
	assert.NotContains(t, names, "ghost")
	assert.NotContains(t, names, "Fake")

	for _, s := range scan.Symbols {
		if s.Name == "Base" {
			assert.Equal(t, "abstract contract", s.Detail)
		}
		if s.Name == "add" {
			assert.Equal(t, "Math", s.Container)
		}
	}
}

func TestScanImportsAndMasking(t *testing.T) {
	src := "import \"./A.sol\";\n// import \"./Commented.sol\";\nimport {B as C} from 'lib/B.sol';\n"
	scan := scanFile(source.NewVirtualFile("/p/X.sol", src))
	require.Len(t, scan.Imports, 2)
	assert.Equal(t, "./A.sol", scan.Imports[0].Path)
	assert.Equal(t, source.Position{Line: 0, Character: 8}, scan.Imports[0].Range.Start)
	assert.Equal(t, "lib/B.sol", scan.Imports[1].Path)
	assert.Empty(t, scan.Refs["Commented"])
	assert.Len(t, scan.Refs["C"], 1)
}

func TestMaskKeepsOffsets(t *testing.T) {
	src := []byte("a /* x\ny */ b \"s\\\"q\" c // z\nd")
	masked := maskCommentsAndStrings(src)
	require.Len(t, masked, len(src))
	assert.Equal(t, "a     \n     b        c     \nd", string(masked))
}

func TestForEachIdentSkipsNumbers(t *testing.T) {
	var got []string
	src := []byte("x = 0xff + 1e18 + y2;")
	forEachIdent(src, func(s, e int) { got = append(got, string(src[s:e])) })
	assert.Equal(t, []string{"x", "y2"}, got)
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("Tally"))
	assert.True(t, ValidIdentifier("_x$1"))
	assert.False(t, ValidIdentifier(""))
	assert.False(t, ValidIdentifier("9lives"))
	assert.False(t, ValidIdentifier("has-dash"))
	assert.False(t, ValidIdentifier("function"))
}
