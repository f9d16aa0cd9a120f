package lang

func builtinSpecs() []*LanguageSpec {
	return []*LanguageSpec{
		{
			Language:          Python,
			FileExtensions:    []string{".py"},
			FunctionNodeTypes: []string{"function_definition"},
			ClassNodeTypes:    []string{"class_definition"},
			ModuleNodeTypes:   []string{"module"},
			CallNodeTypes:     []string{"call"},
			ImportNodeTypes:   []string{"import_statement", "import_from_statement"},

			VariableNodeTypes:   []string{"assignment", "augmented_assignment"},
			AssignmentNodeTypes: []string{"assignment", "augmented_assignment"},
			ThrowNodeTypes:      []string{"raise_statement"},
			CatchNodeTypes:      []string{"except_clause"},
			DecoratorNodeTypes:  []string{"decorator"},
		},
		{
			Language:       Kotlin,
			FileExtensions: []string{".kt"},
			FunctionNodeTypes: []string{
				"function_declaration",
				"secondary_constructor",
			},
			ClassNodeTypes: []string{
				"class_declaration",
				"object_declaration",
			},
			ModuleNodeTypes: []string{"source_file"},
			CallNodeTypes:   []string{"call_expression"},
			ImportNodeTypes: []string{"import_header"},

			VariableNodeTypes:    []string{"property_declaration"},
			AssignmentNodeTypes:  []string{"assignment"},
			ThrowNodeTypes:       []string{"throw", "jump_expression"},
			CatchNodeTypes:       []string{"catch_block"},
			DecoratorNodeTypes:   []string{"annotation"},
			CoroutineLaunchNames: []string{"launch", "async", "withContext", "runBlocking"},
		},
		{
			Language:          Java,
			FileExtensions:    []string{".java"},
			FunctionNodeTypes: []string{"method_declaration", "constructor_declaration"},
			ClassNodeTypes: []string{
				"class_declaration",
				"interface_declaration",
				"enum_declaration",
				"record_declaration",
			},
			FieldNodeTypes:  []string{"field_declaration"},
			ModuleNodeTypes: []string{"program"},
			CallNodeTypes:   []string{"method_invocation", "object_creation_expression"},
			ImportNodeTypes: []string{"import_declaration"},

			VariableNodeTypes:   []string{"local_variable_declaration"},
			AssignmentNodeTypes: []string{"assignment_expression"},
			ThrowNodeTypes:      []string{"throw_statement"},
			CatchNodeTypes:      []string{"catch_clause"},
			ThrowsClauseField:   "throws",
			DecoratorNodeTypes:  []string{"annotation", "marker_annotation"},
		},
		{
			Language:       JavaScript,
			FileExtensions: []string{".js", ".jsx"},
			FunctionNodeTypes: []string{
				"function_declaration",
				"generator_function_declaration",
				"function_expression",
				"arrow_function",
				"method_definition",
			},
			ClassNodeTypes:  []string{"class_declaration", "class"},
			ModuleNodeTypes: []string{"program"},
			CallNodeTypes:   []string{"call_expression", "new_expression"},
			ImportNodeTypes: []string{"import_statement"},

			VariableNodeTypes:   []string{"lexical_declaration", "variable_declaration"},
			AssignmentNodeTypes: []string{"assignment_expression", "augmented_assignment_expression"},
			ThrowNodeTypes:      []string{"throw_statement"},
			CatchNodeTypes:      []string{"catch_clause"},
		},
		{
			Language:       TypeScript,
			FileExtensions: []string{".ts", ".tsx"},
			FunctionNodeTypes: []string{
				"function_declaration",
				"generator_function_declaration",
				"function_expression",
				"arrow_function",
				"method_definition",
				"function_signature",
			},
			ClassNodeTypes: []string{
				"class_declaration",
				"class",
				"abstract_class_declaration",
				"enum_declaration",
				"interface_declaration",
			},
			ModuleNodeTypes: []string{"program"},
			CallNodeTypes:   []string{"call_expression", "new_expression"},
			ImportNodeTypes: []string{"import_statement"},

			VariableNodeTypes:   []string{"lexical_declaration", "variable_declaration"},
			AssignmentNodeTypes: []string{"assignment_expression", "augmented_assignment_expression"},
			ThrowNodeTypes:      []string{"throw_statement"},
			CatchNodeTypes:      []string{"catch_clause"},
			DecoratorNodeTypes:  []string{"decorator"},
		},
		{
			Language:          Go,
			FileExtensions:    []string{".go"},
			FunctionNodeTypes: []string{"function_declaration", "method_declaration"},
			ClassNodeTypes:    []string{"type_spec"},
			FieldNodeTypes:    []string{"field_declaration"},
			ModuleNodeTypes:   []string{"source_file"},
			CallNodeTypes:     []string{"call_expression"},
			ImportNodeTypes:   []string{"import_declaration"},

			VariableNodeTypes:   []string{"var_declaration", "const_declaration", "short_var_declaration"},
			AssignmentNodeTypes: []string{"assignment_statement"},
		},
		{
			Language:  Manifest,
			FileNames: []string{"AndroidManifest.xml"},
		},
		{
			Language:       Gradle,
			FileExtensions: []string{".gradle"},
			FileNames:      []string{"build.gradle", "build.gradle.kts", "settings.gradle", "settings.gradle.kts"},
		},
	}
}
