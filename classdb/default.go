package classdb

import (
	"strconv"
	"sync"

	"github.com/assetfile/assetfile/typetree"
)

// Class IDs of the built-in classes.
const (
	GameObject    int32 = 1
	Transform     int32 = 4
	Material      int32 = 21
	Texture2D     int32 = 28
	Mesh          int32 = 43
	Shader        int32 = 48
	TextAsset     int32 = 49
	AudioClip     int32 = 83
	MonoBehaviour int32 = 114
	MonoScript    int32 = 115
	Font          int32 = 128
	Sprite        int32 = 213
	VideoClip     int32 = 329
)

var (
	defaultOnce sync.Once
	defaultDB   *Database
)

// Default returns the built-in database. The layouts follow recent engine
// releases and cover the classes whose leading fields are needed to name
// objects and to locate their external resources. Layouts of large classes
// stop after the last field of interest.
func Default() *Database {
	defaultOnce.Do(func() {
		defaultDB = New(
			&Class{ID: GameObject, Name: "GameObject", Tree: gameObject()},
			&Class{ID: Transform, Name: "Transform", Tree: transform()},
			named(Material, "Material"),
			&Class{ID: Texture2D, Name: "Texture2D", Tree: texture2D()},
			named(Mesh, "Mesh"),
			named(Shader, "Shader"),
			&Class{ID: TextAsset, Name: "TextAsset", Tree: typetree.NewBuilder("TextAsset").
				String("m_Name").
				String("m_Script").
				Tree()},
			&Class{ID: AudioClip, Name: "AudioClip", Tree: audioClip()},
			&Class{ID: MonoBehaviour, Name: "MonoBehaviour", Tree: monoBehaviour()},
			&Class{ID: MonoScript, Name: "MonoScript", Tree: monoScript()},
			named(Font, "Font"),
			named(Sprite, "Sprite"),
			&Class{ID: VideoClip, Name: "VideoClip", Tree: videoClip()},
		)
	})
	return defaultDB
}

func named(id int32, name string) *Class {
	return &Class{ID: id, Name: name, Tree: typetree.NewBuilder(name).String("m_Name").Tree()}
}

func gameObject() typetree.Tree {
	return typetree.NewBuilder("GameObject").
		Vector("vector", "m_Component").
		Begin("ComponentPair", "data", 12).
		PPtr("PPtr<Component>", "component").
		End().
		End().
		Field("unsigned int", "m_Layer", 4).
		String("m_Name").
		Field("UInt16", "m_Tag", 2).
		Field("bool", "m_IsActive", 1).Aligned().
		Tree()
}

func transform() typetree.Tree {
	return typetree.NewBuilder("Transform").
		PPtr("PPtr<GameObject>", "m_GameObject").
		Begin("Quaternionf", "m_LocalRotation", 16).
		Field("float", "x", 4).Field("float", "y", 4).Field("float", "z", 4).Field("float", "w", 4).
		End().
		Begin("Vector3f", "m_LocalPosition", 12).
		Field("float", "x", 4).Field("float", "y", 4).Field("float", "z", 4).
		End().
		Begin("Vector3f", "m_LocalScale", 12).
		Field("float", "x", 4).Field("float", "y", 4).Field("float", "z", 4).
		End().
		Vector("vector", "m_Children").
		PPtr("PPtr<Transform>", "data").
		End().
		PPtr("PPtr<Transform>", "m_Father").
		Tree()
}

func monoBehaviour() typetree.Tree {
	return typetree.NewBuilder("MonoBehaviour").
		PPtr("PPtr<GameObject>", "m_GameObject").
		Field("UInt8", "m_Enabled", 1).Aligned().
		PPtr("PPtr<MonoScript>", "m_Script").
		String("m_Name").
		Tree()
}

func monoScript() typetree.Tree {
	b := typetree.NewBuilder("MonoScript").
		String("m_Name").
		Field("int", "m_ExecutionOrder", 4).
		Begin("Hash128", "m_PropertiesHash", 16)
	for i := 0; i < 16; i++ {
		b.Field("UInt8", "bytes["+strconv.Itoa(i)+"]", 1)
	}
	return b.End().
		String("m_ClassName").
		String("m_Namespace").
		String("m_AssemblyName").
		Tree()
}

func streamedResource(b *typetree.Builder, name string) *typetree.Builder {
	return b.Begin("StreamedResource", name, -1).
		String("m_Source").
		Field("FileSize", "m_Offset", 8).
		Field("UInt64", "m_Size", 8).
		End()
}

func audioClip() typetree.Tree {
	b := typetree.NewBuilder("AudioClip").
		String("m_Name").
		Field("int", "m_LoadType", 4).
		Field("int", "m_Channels", 4).
		Field("int", "m_Frequency", 4).
		Field("int", "m_BitsPerSample", 4).
		Field("float", "m_Length", 4).
		Field("bool", "m_IsTrackerFormat", 1).
		Field("bool", "m_Ambisonic", 1).Aligned().
		Field("int", "m_SubsoundIndex", 4).
		Field("bool", "m_PreloadAudioData", 1).
		Field("bool", "m_LoadInBackground", 1).
		Field("bool", "m_Legacy3D", 1).Aligned()
	return streamedResource(b, "m_Resource").
		Field("int", "m_CompressionFormat", 4).
		Tree()
}

func texture2D() typetree.Tree {
	return typetree.NewBuilder("Texture2D").
		String("m_Name").
		Field("int", "m_ForcedFallbackFormat", 4).
		Field("bool", "m_DownscaleFallback", 1).
		Field("bool", "m_IsAlphaChannelOptional", 1).Aligned().
		Field("int", "m_Width", 4).
		Field("int", "m_Height", 4).
		Field("unsigned int", "m_CompleteImageSize", 4).
		Field("int", "m_MipsStripped", 4).
		Field("int", "m_TextureFormat", 4).
		Field("int", "m_MipCount", 4).
		Field("bool", "m_IsReadable", 1).
		Field("bool", "m_IsPreProcessed", 1).
		Field("bool", "m_IgnoreMasterTextureLimit", 1).
		Field("bool", "m_StreamingMipmaps", 1).Aligned().
		Field("int", "m_StreamingMipmapsPriority", 4).
		Field("int", "m_ImageCount", 4).
		Field("int", "m_TextureDimension", 4).
		Begin("GLTextureSettings", "m_TextureSettings", 24).
		Field("int", "m_FilterMode", 4).
		Field("int", "m_Aniso", 4).
		Field("float", "m_MipBias", 4).
		Field("int", "m_WrapU", 4).
		Field("int", "m_WrapV", 4).
		Field("int", "m_WrapW", 4).
		End().
		Field("int", "m_LightmapFormat", 4).
		Field("int", "m_ColorSpace", 4).
		Vector("TypelessData", "image data").
		Field("UInt8", "data", 1).
		End().
		Begin("StreamingInfo", "m_StreamData", -1).
		Field("UInt64", "offset", 8).
		Field("unsigned int", "size", 4).
		String("path").
		End().
		Tree()
}

func videoClip() typetree.Tree {
	b := typetree.NewBuilder("VideoClip").
		String("m_Name").
		String("m_OriginalPath").
		Field("unsigned int", "m_ProxyWidth", 4).
		Field("unsigned int", "m_ProxyHeight", 4).
		Field("unsigned int", "Width", 4).
		Field("unsigned int", "Height", 4).
		Field("unsigned int", "m_PixelAspecRatioNum", 4).
		Field("unsigned int", "m_PixelAspecRatioDen", 4).
		Field("double", "m_FrameRate", 8).
		Field("UInt64", "m_FrameCount", 8).
		Field("int", "m_Format", 4).
		Vector("vector", "m_AudioChannelCount").
		Field("UInt16", "data", 2).
		End().
		Vector("vector", "m_AudioSampleRate").
		Field("unsigned int", "data", 4).
		End().
		Vector("vector", "m_AudioLanguage").
		String("data").
		End()
	return streamedResource(b, "m_ExternalResources").
		Field("bool", "m_HasSplitAlpha", 1).
		Field("bool", "m_sRGB", 1).Aligned().
		Tree()
}
