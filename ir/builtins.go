package ir

// Builtins holds the type ids of every built-in type, installed once by
// NewContext before any user code runs.
type Builtins struct {
	Float TypeID
	Int   TypeID
	Uint  TypeID
	Bool  TypeID

	// Float vectors, indexed [2..4] (index 0,1 unused).
	FloatVec [5]TypeID
	IntVec   [5]TypeID
	UintVec  [5]TypeID
	BoolVec  [5]TypeID

	// Square float matrices, indexed [2..4] (index 0,1 unused).
	FloatMat [5]TypeID

	Sampler      TypeID
	Tex2D        TypeID
	Tex2DArray   TypeID
	TexCube      TypeID
	BVH          TypeID // acceleration structure handle
	Ray          TypeID // ray description struct
}

// vectorLetters are the canonical component-name alphabets swizzles are
// synthesized over, per spec §4.1.
var vectorLetters = [2]string{"xyzw", "rgba"}

// installBuiltins populates names, types, and swizzle members. Must run
// before any user-facing add_type/find_type_by_name call.
func installBuiltins(names *NameTable, types *TypeTable) Builtins {
	var b Builtins

	addScalar := func(name string) TypeID {
		return types.Add(Type{Name: names.Intern(name), BuiltIn: true})
	}
	b.Float = addScalar("float")
	b.Int = addScalar("int")
	b.Uint = addScalar("uint")
	b.Bool = addScalar("bool")

	// Float vectors first (so their own swizzle members can reference
	// narrower float vectors), then synthesize swizzles in a second pass
	// once float2/float3/float4 all exist.
	for n := 2; n <= 4; n++ {
		b.FloatVec[n] = types.Add(Type{Name: names.Intern(vecName("float", n)), BuiltIn: true})
	}
	for n := 2; n <= 4; n++ {
		synthesizeSwizzles(names, types, b.FloatVec[n], n, b.Float, func(size int) TypeID {
			if size == 1 {
				return b.Float
			}
			return b.FloatVec[size]
		})
	}

	for n := 2; n <= 4; n++ {
		b.IntVec[n] = types.Add(Type{Name: names.Intern(vecName("int", n)), BuiltIn: true})
	}
	for n := 2; n <= 4; n++ {
		synthesizeSwizzles(names, types, b.IntVec[n], n, b.Int, func(size int) TypeID {
			if size == 1 {
				return b.Int
			}
			return b.IntVec[size]
		})
	}

	for n := 2; n <= 4; n++ {
		b.UintVec[n] = types.Add(Type{Name: names.Intern(vecName("uint", n)), BuiltIn: true})
	}
	for n := 2; n <= 4; n++ {
		synthesizeSwizzles(names, types, b.UintVec[n], n, b.Uint, func(size int) TypeID {
			if size == 1 {
				return b.Uint
			}
			return b.UintVec[size]
		})
	}

	for n := 2; n <= 4; n++ {
		b.BoolVec[n] = types.Add(Type{Name: names.Intern(vecName("bool", n)), BuiltIn: true})
	}

	for n := 2; n <= 4; n++ {
		b.FloatMat[n] = types.Add(Type{Name: names.Intern(matName(n)), BuiltIn: true})
	}

	b.Sampler = types.Add(Type{Name: names.Intern("sampler"), BuiltIn: true})
	b.Tex2D = types.Add(Type{Name: names.Intern("tex2d"), BuiltIn: true, Texture: Texture2D})
	b.Tex2DArray = types.Add(Type{Name: names.Intern("tex2d_array"), BuiltIn: true, Texture: Texture2DArray})
	b.TexCube = types.Add(Type{Name: names.Intern("texcube"), BuiltIn: true, Texture: TextureCube})
	b.BVH = types.Add(Type{Name: names.Intern("bvh"), BuiltIn: true})
	b.Ray = types.Add(Type{Name: names.Intern("ray"), BuiltIn: true})

	return b
}

func vecName(prefix string, n int) string {
	digits := []byte{'0', '1', '2', '3', '4'}
	return prefix + string(digits[n])
}

func matName(n int) string {
	digits := []byte{'0', '1', '2', '3', '4'}
	d := string(digits[n])
	return "float" + d + "x" + d
}

// synthesizeSwizzles adds every permutation of length 1..n over both
// canonical letter sets (xyzw and rgba, truncated to the vector's arity) as
// a named member on the vector type id, in insertion order: for each letter
// set, lengths 1..n in order, and within a length the permutations are
// generated in the canonical nested order (spec §4.1's "insertion order
// within the permutation enumeration is canonical").
func synthesizeSwizzles(names *NameTable, types *TypeTable, vecType TypeID, arity int, scalar TypeID, resultType func(size int) TypeID) {
	for _, alphabet := range vectorLetters {
		letters := []byte(alphabet)[:arity]
		for length := 1; length <= arity; length++ {
			permute(letters, length, func(perm []byte) {
				member := Member{
					Name: names.Intern(string(perm)),
					Type: TypeRef{Type: resultType(length)},
				}
				t := types.Get(vecType)
				t.Members = append(t.Members, member)
			})
		}
	}
}

// permute enumerates every length-k string over set (with repetition),
// calling found with each permutation in canonical nested order: outer loop
// over the first component, recursing for the rest.
func permute(set []byte, k int, found func([]byte)) {
	buf := make([]byte, 0, k)
	var rec func(depth int)
	rec = func(depth int) {
		if depth == k {
			found(buf)
			return
		}
		for _, c := range set {
			buf = append(buf, c)
			rec(depth + 1)
			buf = buf[:len(buf)-1]
		}
	}
	rec(0)
}
