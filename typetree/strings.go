package typetree

import "strings"

// commonFlag marks a string offset as referring into the common-string
// buffer rather than the type tree's local buffer.
const commonFlag = 0x80000000

// commonBuffer is the engine's built-in string table. Type trees refer to
// these strings by byte offset to avoid storing them per file.
const commonBuffer = "AABB\x00AnimationClip\x00AnimationCurve\x00AnimationState\x00Array\x00" +
	"Base\x00BitField\x00bitset\x00bool\x00char\x00ColorRGBA\x00Component\x00data\x00" +
	"deque\x00double\x00dynamic_array\x00FastPropertyName\x00first\x00float\x00Font\x00" +
	"GameObject\x00Generic Mono\x00GradientNEW\x00GUID\x00GUIStyle\x00int\x00list\x00" +
	"long long\x00map\x00Matrix4x4f\x00MdFour\x00MonoBehaviour\x00MonoScript\x00" +
	"m_ByteSize\x00m_Curve\x00m_EditorClassIdentifier\x00m_EditorHideFlags\x00" +
	"m_Enabled\x00m_ExtensionPtr\x00m_GameObject\x00m_Index\x00m_IsArray\x00" +
	"m_IsStatic\x00m_MetaFlag\x00m_Name\x00m_ObjectHideFlags\x00m_PrefabInternal\x00" +
	"m_PrefabParentObject\x00m_Script\x00m_StaticEditorFlags\x00m_Type\x00m_Version\x00" +
	"Object\x00pair\x00PPtr<Component>\x00PPtr<GameObject>\x00PPtr<Material>\x00" +
	"PPtr<MonoBehaviour>\x00PPtr<MonoScript>\x00PPtr<Object>\x00PPtr<Prefab>\x00" +
	"PPtr<Sprite>\x00PPtr<TextAsset>\x00PPtr<Texture>\x00PPtr<Texture2D>\x00" +
	"PPtr<Transform>\x00Prefab\x00Quaternionf\x00Rectf\x00RectInt\x00RectOffset\x00" +
	"second\x00set\x00short\x00size\x00SInt16\x00SInt32\x00SInt64\x00SInt8\x00" +
	"staticvector\x00string\x00TextAsset\x00TextMesh\x00Texture\x00Texture2D\x00" +
	"Transform\x00TypelessData\x00UInt16\x00UInt32\x00UInt64\x00UInt8\x00" +
	"unsigned int\x00unsigned long long\x00unsigned short\x00vector\x00Vector2f\x00" +
	"Vector3f\x00Vector4f\x00m_ScriptingClassIdentifier\x00Gradient\x00Type*\x00" +
	"int2_storage\x00int3_storage\x00BoundsInt\x00m_CorrespondingSourceObject\x00" +
	"m_PrefabInstance\x00m_PrefabAsset\x00FileSize\x00Hash128\x00"

// commonOffsets maps each common string to its offset in commonBuffer.
var commonOffsets = func() map[string]uint32 {
	m := map[string]uint32{}
	for off := 0; off < len(commonBuffer); {
		end := strings.IndexByte(commonBuffer[off:], 0)
		m[commonBuffer[off:off+end]] = uint32(off)
		off += end + 1
	}
	return m
}()

// CommonString returns the common string at the given offset into the
// built-in table. The high flag bit may be set or not.
func CommonString(offset uint32) (s string, ok bool) {
	return cString(commonBuffer, offset&^commonFlag)
}

// CommonOffset returns the offset of s in the built-in table, with the flag
// bit set.
func CommonOffset(s string) (offset uint32, ok bool) {
	off, ok := commonOffsets[s]
	return off | commonFlag, ok
}

func cString(buf string, offset uint32) (string, bool) {
	if int64(offset) >= int64(len(buf)) {
		return "", false
	}
	end := strings.IndexByte(buf[offset:], 0)
	if end < 0 {
		return "", false
	}
	return buf[offset : int(offset)+end], true
}
