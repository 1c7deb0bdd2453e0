package systems

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/spaghettifunk/ludo/engine/core"
	"github.com/spaghettifunk/ludo/engine/renderer/metadata"
)

type shaderAttribute struct {
	Location uint32
	Type     string
	Name     string
}

type shaderTemplateData struct {
	Attributes  []shaderAttribute
	Position    string
	HasNormal   bool
	HasColor    bool
	HasTexture  bool
	HasBones    bool
	BoneWeights uint32
	MaxBones    uint32
	BoneIndices string
	BoneValues  string
}

const vertexShaderTemplate = `#version 460 core
#extension GL_ARB_bindless_texture : require
{{range .Attributes}}
layout(location = {{.Location}}) in {{.Type}} {{.Name}};{{end}}

struct instance_t
{
  mat4 transform;{{if .HasTexture}}
  sampler2D texture_sampler;
  vec2 padding;{{end}}{{if .HasBones}}
  mat4 bone_transforms[{{.MaxBones}}];{{end}}
};

layout(std430, binding = {{.ContextBinding}}) buffer context_layout
{
  mat4 view;
  mat4 projection;
};

layout(std430, binding = {{.InstanceBinding}}) buffer instance_layout
{
  instance_t instances[];
};
{{if .HasNormal}}
out vec3 frag_normal;{{end}}{{if .HasColor}}
out vec4 frag_color;{{end}}{{if .HasTexture}}
out vec2 frag_texture_coordinate;
flat out sampler2D frag_texture_sampler;{{end}}

void main()
{
  instance_t instance = instances[gl_BaseInstance + gl_InstanceID];
  mat4 model = instance.transform;{{if .HasBones}}
  mat4 skin = mat4(0.0);
  for (int i = 0; i < {{.BoneWeights}}; i++)
  {
    skin += instance.bone_transforms[{{.BoneIndices}}[i]] * {{.BoneValues}}[i];
  }
  model = model * skin;{{end}}
  gl_Position = projection * view * model * vec4({{.Position}}, 1.0);{{if .HasNormal}}
  frag_normal = normalize(mat3(model) * normal);{{end}}{{if .HasColor}}
  frag_color = color;{{end}}{{if .HasTexture}}
  frag_texture_coordinate = texture_coordinate;
  frag_texture_sampler = instance.texture_sampler;{{end}}
}
`

const fragmentShaderTemplate = `#version 460 core
#extension GL_ARB_bindless_texture : require
{{if .HasNormal}}
in vec3 frag_normal;{{end}}{{if .HasColor}}
in vec4 frag_color;{{end}}{{if .HasTexture}}
in vec2 frag_texture_coordinate;
flat in sampler2D frag_texture_sampler;{{end}}

out vec4 out_color;

void main()
{
  vec4 color = vec4(1.0);{{if .HasColor}}
  color *= frag_color;{{end}}{{if .HasTexture}}
  color *= texture(frag_texture_sampler, frag_texture_coordinate);{{end}}{{if .HasNormal}}
  float light = max(dot(normalize(frag_normal), normalize(vec3(0.5, 1.0, 0.25))), 0.1);
  color.rgb *= light;{{end}}
  out_color = color;
}
`

var (
	vertexShader   = template.Must(template.New("vertex").Parse(vertexShaderTemplate))
	fragmentShader = template.Must(template.New("fragment").Parse(fragmentShaderTemplate))
)

type shaderTemplateContext struct {
	shaderTemplateData
	ContextBinding  uint32
	InstanceBinding uint32
}

/**
 * @brief Generates the GLSL source of a stage for a vertex format.
 */
func GenerateShaderSource(stage metadata.ShaderStage, format metadata.VertexFormat, limits metadata.RendererLimits) (string, error) {
	data := shaderTemplateContext{ContextBinding: metadata.ContextBufferBinding, InstanceBinding: metadata.InstanceBufferBinding}
	data.HasNormal = format.HasNormal
	data.HasColor = format.HasColor
	data.HasTexture = format.HasTextureCoord
	data.HasBones = format.HasBoneWeights
	data.MaxBones = limits.MaxBonesPerArmature
	data.BoneWeights = format.BoneWeightCount()

	for i, attribute := range format.PhysicalAttributes() {
		if attribute.Count == 0 || attribute.Count > 4 {
			return "", fmt.Errorf("component %c%d cannot be bound to a vertex attribute: %w", attribute.Tag, attribute.Count, core.ErrUnsupportedFormat)
		}
		name, typ := attributeDeclaration(attribute, i)
		data.Attributes = append(data.Attributes, shaderAttribute{Location: uint32(i), Type: typ, Name: name})
		switch {
		case attribute.Tag == metadata.VertexComponentPosition:
			data.Position = name
		case attribute.Tag == metadata.VertexComponentUnsignedInt && format.HasBoneWeights && data.BoneIndices == "":
			data.BoneIndices = name
		case attribute.Tag == metadata.VertexComponentFloat && format.HasBoneWeights && data.BoneValues == "":
			data.BoneValues = name
		}
	}
	if data.Position == "" {
		return "", fmt.Errorf("vertex format %s has no position component", format)
	}

	var tmpl *template.Template
	switch stage {
	case metadata.ShaderStageVertex:
		tmpl = vertexShader
	case metadata.ShaderStageFragment:
		tmpl = fragmentShader
	default:
		return "", fmt.Errorf("cannot generate a %s shader from a vertex format", stage)
	}

	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, data); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

func attributeDeclaration(c metadata.VertexComponent, location int) (string, string) {
	var name string
	switch c.Tag {
	case metadata.VertexComponentPosition:
		name = "position"
	case metadata.VertexComponentNormal:
		name = "normal"
	case metadata.VertexComponentColor:
		name = "color"
	case metadata.VertexComponentTexCoord:
		name = "texture_coordinate"
	case metadata.VertexComponentUnsignedInt:
		name = fmt.Sprintf("uint_%d", location)
	case metadata.VertexComponentInt:
		name = fmt.Sprintf("int_%d", location)
	default:
		name = fmt.Sprintf("float_%d", location)
	}

	prefix := "vec"
	switch c.Tag {
	case metadata.VertexComponentUnsignedInt:
		prefix = "uvec"
	case metadata.VertexComponentInt:
		prefix = "ivec"
	}
	if c.Count == 1 {
		switch prefix {
		case "uvec":
			return name, "uint"
		case "ivec":
			return name, "int"
		}
		return name, "float"
	}
	return name, fmt.Sprintf("%s%d", prefix, c.Count)
}
